package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/deps"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/entities"
	accounterrors "github.com/Theoretician9/content-factory-sub003/internal/domain/account/errors"
)

// Repository is an in-memory implementation of deps.AccountRepository,
// used in tests and local development. Mutations run under a single mutex,
// which gives the same per-account serialization the PostgreSQL
// implementation gets from row locks.
type Repository struct {
	mu       sync.Mutex
	accounts map[string]*entities.Account
}

// NewRepository creates a new in-memory account repository
func NewRepository() *Repository {
	return &Repository{accounts: make(map[string]*entities.Account)}
}

func copyAccount(a *entities.Account) *entities.Account {
	cp := *a
	cp.Channels = make(map[string]*entities.ChannelUsage, len(a.Channels))
	for id, ch := range a.Channels {
		c := *ch
		cp.Channels[id] = &c
	}
	copyTime := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := *t
		return &v
	}
	cp.LockExpiresAt = copyTime(a.LockExpiresAt)
	cp.FloodWaitUntil = copyTime(a.FloodWaitUntil)
	cp.BlockedUntil = copyTime(a.BlockedUntil)
	cp.LastUsedAt = copyTime(a.LastUsedAt)
	cp.Invites.LastAt = copyTime(a.Invites.LastAt)
	cp.Invites.BurstStart = copyTime(a.Invites.BurstStart)
	cp.Messages.LastAt = copyTime(a.Messages.LastAt)
	cp.Messages.BurstStart = copyTime(a.Messages.BurstStart)
	cp.Contacts.LastAt = copyTime(a.Contacts.LastAt)
	cp.Contacts.BurstStart = copyTime(a.Contacts.BurstStart)
	return &cp
}

// Create inserts a new account
func (r *Repository) Create(ctx context.Context, acc *entities.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[acc.ID]; exists {
		return accounterrors.ErrAlreadyExists
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}
	r.accounts[acc.ID] = copyAccount(acc)
	return nil
}

// GetByID retrieves an account by id
func (r *Repository) GetByID(ctx context.Context, id string) (*entities.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return nil, accounterrors.ErrNotFound
	}
	return copyAccount(acc), nil
}

// ListByUser retrieves accounts owned by a user, optionally filtered by status
func (r *Repository) ListByUser(ctx context.Context, userID int64, statuses ...domain.AccountStatus) ([]*entities.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entities.Account
	for _, acc := range r.accounts {
		if acc.UserID != userID {
			continue
		}
		if len(statuses) > 0 && !statusIn(acc.Status, statuses) {
			continue
		}
		out = append(out, copyAccount(acc))
	}
	return out, nil
}

// ListByStatus retrieves all accounts in any of the given statuses
func (r *Repository) ListByStatus(ctx context.Context, statuses ...domain.AccountStatus) ([]*entities.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entities.Account
	for _, acc := range r.accounts {
		if len(statuses) > 0 && !statusIn(acc.Status, statuses) {
			continue
		}
		out = append(out, copyAccount(acc))
	}
	return out, nil
}

// Mutate runs fn against a copy of the account and commits it on success
func (r *Repository) Mutate(ctx context.Context, id string, fn deps.MutateFunc) (*entities.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return nil, accounterrors.ErrNotFound
	}

	work := copyAccount(acc)
	if err := fn(work); err != nil {
		return nil, err
	}
	work.UpdatedAt = time.Now().UTC()
	r.accounts[id] = work
	return copyAccount(work), nil
}

// CountByStatus returns the number of accounts per status
func (r *Repository) CountByStatus(ctx context.Context) (map[domain.AccountStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[domain.AccountStatus]int64)
	for _, acc := range r.accounts {
		counts[acc.Status]++
	}
	return counts, nil
}

// ResetDailyCounters zeroes daily counters and reactivates rate_limited
// accounts. Per-channel lifetime counters are never touched.
func (r *Repository) ResetDailyCounters(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var affected int64
	for _, acc := range r.accounts {
		touched := acc.Invites.Today != 0 || acc.Messages.Today != 0 || acc.Contacts.Today != 0
		acc.Invites.Today = 0
		acc.Messages.Today = 0
		acc.Contacts.Today = 0
		for _, ch := range acc.Channels {
			ch.Today = 0
		}
		if acc.Status == domain.StatusRateLimited {
			acc.Status = domain.StatusActive
		}
		if touched {
			affected++
		}
	}
	return affected, nil
}

// ResetChannelLifetime clears the lifetime ceiling for one channel
func (r *Repository) ResetChannelLifetime(ctx context.Context, accountID, channelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[accountID]
	if !ok {
		return accounterrors.ErrNotFound
	}
	ch, ok := acc.Channels[channelID]
	if !ok {
		return accounterrors.ErrNotFound
	}
	ch.Lifetime = 0
	ch.Today = 0
	return nil
}

func statusIn(s domain.AccountStatus, list []domain.AccountStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
