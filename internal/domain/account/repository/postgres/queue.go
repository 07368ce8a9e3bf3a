package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/deps"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/entities"
)

// RecoveryQueue implements deps.RecoveryQueue using PostgreSQL.
// One entry per account, keyed by account id.
type RecoveryQueue struct {
	db *gorm.DB
}

// NewRecoveryQueue creates a new PostgreSQL recovery queue
func NewRecoveryQueue(db *gorm.DB) deps.RecoveryQueue {
	return &RecoveryQueue{db: db}
}

// Upsert inserts or replaces the recovery entry for an account
func (q *RecoveryQueue) Upsert(ctx context.Context, accountID string, dueAt time.Time, reason string) error {
	row := entities.RecoveryEntryModel{
		AccountID: accountID,
		DueAt:     dueAt,
		Reason:    reason,
	}
	if err := q.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"due_at", "reason", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to upsert recovery entry: %w", err)
	}
	return nil
}

// Due returns all entries with due_at <= now, oldest first
func (q *RecoveryQueue) Due(ctx context.Context, now time.Time) ([]*entities.RecoveryEntry, error) {
	var models []entities.RecoveryEntryModel
	if err := q.db.WithContext(ctx).
		Where("due_at <= ?", now).
		Order("due_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list due recovery entries: %w", err)
	}

	entries := make([]*entities.RecoveryEntry, len(models))
	for i, m := range models {
		entries[i] = &entities.RecoveryEntry{
			ID:        m.ID,
			AccountID: m.AccountID,
			DueAt:     m.DueAt,
			Reason:    m.Reason,
			CreatedAt: m.CreatedAt,
		}
	}
	return entries, nil
}

// Reschedule moves an account's entry to a later due time
func (q *RecoveryQueue) Reschedule(ctx context.Context, accountID string, dueAt time.Time) error {
	if err := q.db.WithContext(ctx).
		Model(&entities.RecoveryEntryModel{}).
		Where("account_id = ?", accountID).
		Update("due_at", dueAt).Error; err != nil {
		return fmt.Errorf("failed to reschedule recovery entry: %w", err)
	}
	return nil
}

// Delete removes an account's entry
func (q *RecoveryQueue) Delete(ctx context.Context, accountID string) error {
	if err := q.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&entities.RecoveryEntryModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete recovery entry: %w", err)
	}
	return nil
}

// Stats returns the queue size and the oldest pending due time
func (q *RecoveryQueue) Stats(ctx context.Context) (int64, *time.Time, error) {
	var size int64
	if err := q.db.WithContext(ctx).
		Model(&entities.RecoveryEntryModel{}).
		Count(&size).Error; err != nil {
		return 0, nil, fmt.Errorf("failed to count recovery entries: %w", err)
	}
	if size == 0 {
		return 0, nil, nil
	}

	var oldest entities.RecoveryEntryModel
	if err := q.db.WithContext(ctx).
		Order("due_at ASC").
		First(&oldest).Error; err != nil {
		return 0, nil, fmt.Errorf("failed to find oldest recovery entry: %w", err)
	}
	return size, &oldest.DueAt, nil
}
