package deps

import (
	"context"
	"time"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/entities"
)

// MutateFunc inspects and modifies an account in place. Returning an error
// aborts the mutation: nothing is persisted and the error is propagated.
type MutateFunc func(acc *entities.Account) error

// AccountRepository is the transactional account store.
//
// Mutate is the store's atomic conditional-update primitive: the callback
// runs under per-account serialization (row lock in the PostgreSQL
// implementation), so read-modify-write sequences never lose updates between
// concurrent Release and maintenance-sweep writers.
type AccountRepository interface {
	Create(ctx context.Context, acc *entities.Account) error
	GetByID(ctx context.Context, id string) (*entities.Account, error)
	ListByUser(ctx context.Context, userID int64, statuses ...domain.AccountStatus) ([]*entities.Account, error)
	ListByStatus(ctx context.Context, statuses ...domain.AccountStatus) ([]*entities.Account, error)
	Mutate(ctx context.Context, id string, fn MutateFunc) (*entities.Account, error)
	CountByStatus(ctx context.Context) (map[domain.AccountStatus]int64, error)

	// ResetDailyCounters zeroes all daily counters and per-channel today
	// counters, and returns rate_limited accounts to active. Hourly buckets
	// expire on their own and are left alone. It never touches per-channel
	// lifetime counters. Returns affected account count.
	ResetDailyCounters(ctx context.Context, now time.Time) (int64, error)

	// ResetChannelLifetime clears the lifetime ceiling for one channel of one
	// account. Administrative action only: no scheduled job calls this.
	ResetChannelLifetime(ctx context.Context, accountID, channelID string) error
}

// RecoveryQueue stores time-ordered recovery entries, one per account
type RecoveryQueue interface {
	Upsert(ctx context.Context, accountID string, dueAt time.Time, reason string) error
	Due(ctx context.Context, now time.Time) ([]*entities.RecoveryEntry, error)
	Reschedule(ctx context.Context, accountID string, dueAt time.Time) error
	Delete(ctx context.Context, accountID string) error
	Stats(ctx context.Context) (size int64, oldestDueAt *time.Time, err error)
}

// LockProvider grants exclusive, TTL-bounded ownership of a key to one
// owner token at a time. The TTL is authoritative: when it expires the
// provider frees the key on its own.
type LockProvider interface {
	TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, owner string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// EventPublisher publishes account lifecycle events for downstream services
type EventPublisher interface {
	PublishAccountEvent(ctx context.Context, event domain.AccountEvent) error
}
