package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/entities"
)

// RecoveryQueue is an in-memory implementation of deps.RecoveryQueue
type RecoveryQueue struct {
	mu      sync.Mutex
	nextID  uint
	entries map[string]*entities.RecoveryEntry
}

// NewRecoveryQueue creates a new in-memory recovery queue
func NewRecoveryQueue() *RecoveryQueue {
	return &RecoveryQueue{entries: make(map[string]*entities.RecoveryEntry)}
}

// Upsert inserts or replaces the entry for an account
func (q *RecoveryQueue) Upsert(ctx context.Context, accountID string, dueAt time.Time, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e, ok := q.entries[accountID]; ok {
		e.DueAt = dueAt
		e.Reason = reason
		return nil
	}
	q.nextID++
	q.entries[accountID] = &entities.RecoveryEntry{
		ID:        q.nextID,
		AccountID: accountID,
		DueAt:     dueAt,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// Due returns all entries with due_at <= now, oldest first
func (q *RecoveryQueue) Due(ctx context.Context, now time.Time) ([]*entities.RecoveryEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*entities.RecoveryEntry
	for _, e := range q.entries {
		if !e.DueAt.After(now) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

// Reschedule moves an account's entry to a later due time
func (q *RecoveryQueue) Reschedule(ctx context.Context, accountID string, dueAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e, ok := q.entries[accountID]; ok {
		e.DueAt = dueAt
	}
	return nil
}

// Delete removes an account's entry
func (q *RecoveryQueue) Delete(ctx context.Context, accountID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.entries, accountID)
	return nil
}

// Stats returns the queue size and the oldest pending due time
func (q *RecoveryQueue) Stats(ctx context.Context) (int64, *time.Time, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return 0, nil, nil
	}
	var oldest *time.Time
	for _, e := range q.entries {
		if oldest == nil || e.DueAt.Before(*oldest) {
			due := e.DueAt
			oldest = &due
		}
	}
	return int64(len(q.entries)), oldest, nil
}
