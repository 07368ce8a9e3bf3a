package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/deps"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/entities"
	accounterrors "github.com/Theoretician9/content-factory-sub003/internal/domain/account/errors"
)

// Repository implements deps.AccountRepository using PostgreSQL.
//
// Mutate serializes writers per account with a SELECT ... FOR UPDATE row
// lock, so counter increments and status transitions from concurrent Release
// and maintenance-sweep calls never lose updates.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new PostgreSQL account repository
func NewRepository(db *gorm.DB) deps.AccountRepository {
	return &Repository{db: db}
}

// Create inserts a new account
func (r *Repository) Create(ctx context.Context, acc *entities.Account) error {
	model := entities.FromEntity(acc)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return accounterrors.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByID retrieves an account with its per-channel usage
func (r *Repository) GetByID(ctx context.Context, id string) (*entities.Account, error) {
	var model entities.AccountModel
	if err := r.db.WithContext(ctx).
		Preload("Channels").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accounterrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return model.ToEntity(), nil
}

// ListByUser retrieves accounts owned by a user, optionally filtered by status
func (r *Repository) ListByUser(ctx context.Context, userID int64, statuses ...domain.AccountStatus) ([]*entities.Account, error) {
	query := r.db.WithContext(ctx).Preload("Channels").Where("user_id = ?", userID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statusStrings(statuses))
	}

	var models []entities.AccountModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts for user %d: %w", userID, err)
	}
	return toEntities(models), nil
}

// ListByStatus retrieves all accounts in any of the given statuses
func (r *Repository) ListByStatus(ctx context.Context, statuses ...domain.AccountStatus) ([]*entities.Account, error) {
	query := r.db.WithContext(ctx).Preload("Channels")
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statusStrings(statuses))
	}

	var models []entities.AccountModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts by status: %w", err)
	}
	return toEntities(models), nil
}

// Mutate runs fn against the current account row under FOR UPDATE and
// persists the result. Channel usage rows are upserted only when changed.
func (r *Repository) Mutate(ctx context.Context, id string, fn deps.MutateFunc) (*entities.Account, error) {
	var result *entities.Account

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model entities.AccountModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return accounterrors.ErrNotFound
			}
			return fmt.Errorf("failed to lock account row: %w", err)
		}

		var channels []entities.ChannelUsageModel
		if err := tx.Where("account_id = ?", id).Find(&channels).Error; err != nil {
			return fmt.Errorf("failed to load channel usage: %w", err)
		}
		model.Channels = channels

		acc := model.ToEntity()
		before := snapshotChannels(acc)

		if err := fn(acc); err != nil {
			return err
		}

		updated := entities.FromEntity(acc)
		updated.CreatedAt = model.CreatedAt
		if err := tx.Save(updated).Error; err != nil {
			return fmt.Errorf("failed to save account: %w", err)
		}

		for channelID, usage := range acc.Channels {
			prev, existed := before[channelID]
			if existed && prev.Today == usage.Today && prev.Lifetime == usage.Lifetime {
				continue
			}
			row := entities.ChannelUsageModel{
				AccountID: id,
				ChannelID: channelID,
				Today:     usage.Today,
				Lifetime:  usage.Lifetime,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "account_id"}, {Name: "channel_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"today", "lifetime", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return fmt.Errorf("failed to upsert channel usage: %w", err)
			}
		}

		result = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CountByStatus returns the number of accounts per status
func (r *Repository) CountByStatus(ctx context.Context) (map[domain.AccountStatus]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&entities.AccountModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count accounts by status: %w", err)
	}

	counts := make(map[domain.AccountStatus]int64, len(rows))
	for _, row := range rows {
		counts[domain.AccountStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// ResetDailyCounters zeroes daily counters across all accounts and returns
// rate_limited accounts to active. Per-channel lifetime counters are left
// untouched. Safe to run twice: the second run affects nothing.
func (r *Repository) ResetDailyCounters(ctx context.Context, now time.Time) (int64, error) {
	var affected int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entities.AccountModel{}).
			Where("invite_today <> 0 OR message_today <> 0 OR contact_today <> 0").
			Updates(map[string]interface{}{
				"invite_today":  0,
				"message_today": 0,
				"contact_today": 0,
				"updated_at":    now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to reset daily counters: %w", res.Error)
		}
		affected = res.RowsAffected

		if err := tx.Model(&entities.AccountModel{}).
			Where("status = ?", string(domain.StatusRateLimited)).
			Updates(map[string]interface{}{
				"status":     string(domain.StatusActive),
				"updated_at": now,
			}).Error; err != nil {
			return fmt.Errorf("failed to reactivate rate limited accounts: %w", err)
		}

		if err := tx.Model(&entities.ChannelUsageModel{}).
			Where("today <> 0").
			Update("today", 0).Error; err != nil {
			return fmt.Errorf("failed to reset channel daily counters: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// ResetChannelLifetime clears the lifetime ceiling for one channel of one
// account. Administrative action only.
func (r *Repository) ResetChannelLifetime(ctx context.Context, accountID, channelID string) error {
	res := r.db.WithContext(ctx).
		Model(&entities.ChannelUsageModel{}).
		Where("account_id = ? AND channel_id = ?", accountID, channelID).
		Updates(map[string]interface{}{"lifetime": 0, "today": 0})
	if res.Error != nil {
		return fmt.Errorf("failed to reset channel lifetime: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return accounterrors.ErrNotFound
	}
	return nil
}

func statusStrings(statuses []domain.AccountStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func toEntities(models []entities.AccountModel) []*entities.Account {
	accounts := make([]*entities.Account, len(models))
	for i := range models {
		accounts[i] = models[i].ToEntity()
	}
	return accounts
}

func snapshotChannels(acc *entities.Account) map[string]entities.ChannelUsage {
	snap := make(map[string]entities.ChannelUsage, len(acc.Channels))
	for id, ch := range acc.Channels {
		snap[id] = *ch
	}
	return snap
}
