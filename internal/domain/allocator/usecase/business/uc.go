package business

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/deps"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/entities"
	accounterrors "github.com/Theoretician9/content-factory-sub003/internal/domain/account/errors"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/ratelimit"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/recovery"
	"github.com/Theoretician9/content-factory-sub003/internal/infrastructure/metrics"
)

// Config holds allocator tunables
type Config struct {
	DefaultLeaseTTL time.Duration
	MaxLeaseTTL     time.Duration
	RetryAttempts   int
	RetryBackoff    time.Duration
}

// DefaultConfig returns the built-in allocator settings
func DefaultConfig() Config {
	return Config{
		DefaultLeaseTTL: 30 * time.Minute,
		MaxLeaseTTL:     2 * time.Hour,
		RetryAttempts:   3,
		RetryBackoff:    100 * time.Millisecond,
	}
}

// UseCase orchestrates account allocation: candidate selection, distributed
// locking, usage accounting on release and failure routing.
type UseCase struct {
	repo       deps.AccountRepository
	queue      deps.RecoveryQueue
	locks      deps.LockProvider
	events     deps.EventPublisher
	limiter    *ratelimit.Limiter
	classifier *recovery.Classifier
	sweeper    *recovery.Sweeper
	cfg        Config
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// NewUseCase creates a new allocator use case
func NewUseCase(
	repo deps.AccountRepository,
	queue deps.RecoveryQueue,
	locks deps.LockProvider,
	events deps.EventPublisher,
	limiter *ratelimit.Limiter,
	classifier *recovery.Classifier,
	sweeper *recovery.Sweeper,
	cfg Config,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *UseCase {
	return &UseCase{
		repo:       repo,
		queue:      queue,
		locks:      locks,
		events:     events,
		limiter:    limiter,
		classifier: classifier,
		sweeper:    sweeper,
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
	}
}

// Allocate selects an eligible account owned by userID, acquires its
// distributed lock and returns a lease. Candidates are ranked to spread load:
// fewest exhausted channel ceilings first, then least recently used.
func (u *UseCase) Allocate(ctx context.Context, userID int64, purpose, serviceName, preferredAccountID string, leaseTTL time.Duration) (*domain.Lease, error) {
	start := time.Now()
	now := start.UTC()

	if leaseTTL <= 0 {
		leaseTTL = u.cfg.DefaultLeaseTTL
	}
	if leaseTTL > u.cfg.MaxLeaseTTL {
		leaseTTL = u.cfg.MaxLeaseTTL
	}

	candidates, err := u.candidates(ctx, userID, preferredAccountID, now)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		u.metrics.AllocationErrors.WithLabelValues("none_eligible").Inc()
		u.logger.Info().
			Int64("user_id", userID).
			Str("service", serviceName).
			Msg("No eligible accounts for allocation")
		return nil, domain.ErrNoAvailableAccount
	}

	lockedSkipped := 0
	for _, cand := range candidates {
		owner := serviceName + ":" + uuid.NewString()

		var acquired bool
		err := u.withRetry(ctx, "acquire lock", func() error {
			var aerr error
			acquired, aerr = u.locks.TryAcquire(ctx, cand.ID, owner, leaseTTL)
			return aerr
		})
		if err != nil {
			return nil, err
		}
		if !acquired {
			// Another caller holds this account; move on to the next candidate
			lockedSkipped++
			u.metrics.LockAcquireFailures.Inc()
			continue
		}

		lease, err := u.lockAccount(ctx, cand, owner, serviceName, purpose, now, leaseTTL)
		if err != nil {
			if _, rerr := u.locks.Release(ctx, cand.ID, owner); rerr != nil {
				u.logger.Error().Err(rerr).
					Str("account_id", cand.ID).
					Msg("Failed to release lock after status conflict")
			}
			if errors.Is(err, accounterrors.ErrStatusConflict) {
				lockedSkipped++
				continue
			}
			return nil, err
		}

		u.metrics.AllocationsTotal.Inc()
		u.metrics.AllocationDuration.Observe(time.Since(start).Seconds())
		u.logger.Info().
			Str("account_id", lease.AccountID).
			Str("service", serviceName).
			Str("purpose", purpose).
			Time("expires_at", lease.ExpiresAt).
			Msg("Account allocated")
		return lease, nil
	}

	// Telemetry distinguishes "none eligible" from "all eligible but locked";
	// callers get the same retryable error either way
	u.metrics.AllocationErrors.WithLabelValues("all_locked").Inc()
	u.logger.Info().
		Int64("user_id", userID).
		Int("candidates", len(candidates)).
		Int("locked_skipped", lockedSkipped).
		Msg("All eligible accounts are locked")
	return nil, domain.ErrNoAvailableAccount
}

// candidates returns eligible accounts in allocation order. Accounts in a
// timed failure status whose timer already elapsed count as candidates: the
// next read must re-evaluate them as potentially active without waiting for
// the recovery sweep.
func (u *UseCase) candidates(ctx context.Context, userID int64, preferredAccountID string, now time.Time) ([]*entities.Account, error) {
	if preferredAccountID != "" {
		acc, err := u.repo.GetByID(ctx, preferredAccountID)
		switch {
		case errors.Is(err, accounterrors.ErrNotFound):
			return nil, domain.ErrAccountNotFound
		case err != nil:
			return nil, fmt.Errorf("load preferred account: %w", err)
		case acc.UserID != userID:
			return nil, domain.ErrAccountNotFound
		case acc.Status == domain.StatusDisabled:
			// Terminal status: unlike a timed failure this never clears,
			// so surface it instead of silently falling through
			return nil, domain.ErrAccountDisabled
		}
		if u.allocatable(acc, now) {
			return []*entities.Account{acc}, nil
		}
		// Preferred account not eligible: fall through to the general pool
	}

	var accounts []*entities.Account
	err := u.withRetry(ctx, "list accounts", func() error {
		var lerr error
		accounts, lerr = u.repo.ListByUser(ctx, userID,
			domain.StatusActive, domain.StatusFloodWait, domain.StatusBlocked)
		return lerr
	})
	if err != nil {
		return nil, err
	}

	eligible := make([]*entities.Account, 0, len(accounts))
	for _, acc := range accounts {
		if u.allocatable(acc, now) {
			eligible = append(eligible, acc)
		}
	}

	ceiling := u.limiter.Policies().Get(domain.ActionInvite).PerChannelLifetime
	sort.SliceStable(eligible, func(i, j int) bool {
		ei, ej := exhaustedChannels(eligible[i], ceiling), exhaustedChannels(eligible[j], ceiling)
		if ei != ej {
			return ei < ej
		}
		return lastUsed(eligible[i]).Before(lastUsed(eligible[j]))
	})
	return eligible, nil
}

// allocatable reports whether the account can be offered to a caller now:
// active (or timed-out failure status) and at least one action type passes
// the rate limiter.
func (u *UseCase) allocatable(acc *entities.Account, now time.Time) bool {
	if acc.Status != domain.StatusActive && !acc.TimedOut(now) {
		return false
	}
	for _, action := range []domain.ActionType{domain.ActionInvite, domain.ActionMessage, domain.ActionAddContact} {
		if u.limiter.CheckEligibility(acc, action, "", now).Allowed {
			return true
		}
	}
	return false
}

// lockAccount marks the account locked in the store, conditional on it still
// being allocatable. The distributed lock is already held at this point, so
// a conflict means another path (admin action, a maintenance sweep) changed
// the status in between.
func (u *UseCase) lockAccount(ctx context.Context, cand *entities.Account, owner, serviceName, purpose string, now time.Time, ttl time.Duration) (*domain.Lease, error) {
	expiresAt := now.Add(ttl)
	recoveredInline := false

	_, err := u.repo.Mutate(ctx, cand.ID, func(acc *entities.Account) error {
		if acc.Status != domain.StatusActive {
			if !acc.TimedOut(now) {
				return accounterrors.ErrStatusConflict
			}
			// Timer elapsed: recover inline rather than waiting for the sweep
			acc.FloodWaitUntil = nil
			acc.BlockedUntil = nil
			acc.ConsecutiveErrors = 0
			recoveredInline = true
		}
		acc.Status = domain.StatusLocked
		acc.LockOwner = owner
		acc.LockExpiresAt = &expiresAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	if recoveredInline {
		if err := u.queue.Delete(ctx, cand.ID); err != nil {
			u.logger.Error().Err(err).
				Str("account_id", cand.ID).
				Msg("Failed to drop recovery entry after inline recovery")
		}
	}

	return &domain.Lease{
		AccountID:   cand.ID,
		LockToken:   owner,
		AcquiredAt:  now,
		ExpiresAt:   expiresAt,
		ServiceName: serviceName,
		Purpose:     purpose,
	}, nil
}

// Release verifies the lock token, applies reported usage to the account's
// counters, routes failures to the classifier and frees the distributed lock.
func (u *UseCase) Release(ctx context.Context, accountID, lockToken string, stats domain.UsageStats) error {
	now := time.Now().UTC()

	_, err := u.repo.Mutate(ctx, accountID, func(acc *entities.Account) error {
		if acc.LockOwner == "" || acc.LockOwner != lockToken {
			return accounterrors.ErrLockMismatch
		}

		for _, item := range expandUsage(stats) {
			u.limiter.RecordAction(acc, item.action, item.channel, now)
		}
		// Last-used updates unconditionally, even for an empty lease
		at := now
		acc.LastUsedAt = &at

		if stats.Success {
			acc.ConsecutiveErrors = 0
		}

		// An error reported mid-lease may already have moved the account
		// into a timed or terminal failure status; release keeps that
		// verdict instead of recomputing from quotas.
		switch {
		case acc.Status == domain.StatusDisabled:
		case acc.Status == domain.StatusFloodWait && !acc.TimedOut(now):
		case acc.Status == domain.StatusBlocked && !acc.TimedOut(now):
		default:
			if acc.TimedOut(now) {
				acc.FloodWaitUntil = nil
				acc.BlockedUntil = nil
			}
			acc.Status = u.limiter.StatusAfterUsage(acc)
		}
		acc.LockOwner = ""
		acc.LockExpiresAt = nil
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, accounterrors.ErrLockMismatch):
			u.metrics.ReleaseErrors.WithLabelValues("lock_ownership").Inc()
			u.logger.Warn().
				Str("account_id", accountID).
				Msg("Release rejected: lock token mismatch")
			return domain.ErrLockOwnership
		case errors.Is(err, accounterrors.ErrNotFound):
			u.metrics.ReleaseErrors.WithLabelValues("not_found").Inc()
			return domain.ErrAccountNotFound
		default:
			u.metrics.ReleaseErrors.WithLabelValues("store").Inc()
			return fmt.Errorf("release account %s: %w", accountID, err)
		}
	}

	if _, err := u.locks.Release(ctx, accountID, lockToken); err != nil {
		// The TTL will free the key on its own; log and continue
		u.logger.Error().Err(err).
			Str("account_id", accountID).
			Msg("Failed to release distributed lock")
	}

	if !stats.Success && stats.ErrorKind != "" {
		if _, err := u.classifier.HandleError(ctx, accountID, stats.ErrorKind, stats.ErrorMessage); err != nil {
			return fmt.Errorf("classify release error: %w", err)
		}
	}

	u.metrics.ReleasesTotal.Inc()
	u.logger.Info().
		Str("account_id", accountID).
		Bool("success", stats.Success).
		Int("invites", stats.InvitesSent).
		Int("messages", stats.MessagesSent).
		Int("contacts", stats.ContactsAdded).
		Msg("Lease released")
	return nil
}

// CheckRateLimit is a read-only pre-flight eligibility check
func (u *UseCase) CheckRateLimit(ctx context.Context, accountID string, action domain.ActionType, targetChannel string) (ratelimit.Decision, error) {
	acc, err := u.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, accounterrors.ErrNotFound) {
			return ratelimit.Decision{}, domain.ErrAccountNotFound
		}
		return ratelimit.Decision{}, fmt.Errorf("load account %s: %w", accountID, err)
	}

	decision := u.limiter.CheckEligibility(acc, action, targetChannel, time.Now().UTC())
	if !decision.Allowed {
		u.metrics.RateLimitDenials.WithLabelValues(decision.Reason).Inc()
	}
	return decision, nil
}

// ReportError records an error signal surfaced outside a lease
func (u *UseCase) ReportError(ctx context.Context, accountID string, kind domain.ErrorKind, message string) (domain.AccountStatus, error) {
	status, err := u.classifier.HandleError(ctx, accountID, kind, message)
	if err != nil {
		if errors.Is(err, accounterrors.ErrNotFound) {
			return "", domain.ErrAccountNotFound
		}
		return "", err
	}
	return status, nil
}

// AccountHealth is a point-in-time view of one account's quota state
type AccountHealth struct {
	AccountID         string                 `json:"account_id"`
	Status            domain.AccountStatus   `json:"status"`
	Counters          map[string]ActionUsage `json:"counters"`
	ChannelsUsed      int                    `json:"channels_used"`
	ChannelsExhausted int                    `json:"channels_exhausted"`
	ConsecutiveErrors int                    `json:"consecutive_errors"`
	FloodWaitUntil    *time.Time             `json:"flood_wait_until,omitempty"`
	BlockedUntil      *time.Time             `json:"blocked_until,omitempty"`
	LockExpiresAt     *time.Time             `json:"lock_expires_at,omitempty"`
	LastUsedAt        *time.Time             `json:"last_used_at,omitempty"`
}

// ActionUsage reports consumed quota for one action type
type ActionUsage struct {
	Today    int        `json:"today"`
	ThisHour int        `json:"this_hour"`
	LastAt   *time.Time `json:"last_at,omitempty"`
}

// GetHealth returns the account's status, counters and timed fields
func (u *UseCase) GetHealth(ctx context.Context, accountID string) (*AccountHealth, error) {
	acc, err := u.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, accounterrors.ErrNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("load account %s: %w", accountID, err)
	}

	now := time.Now().UTC()
	ceiling := u.limiter.Policies().Get(domain.ActionInvite).PerChannelLifetime
	health := &AccountHealth{
		AccountID:         acc.ID,
		Status:            acc.Status,
		Counters:          make(map[string]ActionUsage, 3),
		ChannelsUsed:      len(acc.Channels),
		ChannelsExhausted: exhaustedChannels(acc, ceiling),
		ConsecutiveErrors: acc.ConsecutiveErrors,
		FloodWaitUntil:    acc.FloodWaitUntil,
		BlockedUntil:      acc.BlockedUntil,
		LockExpiresAt:     acc.LockExpiresAt,
		LastUsedAt:        acc.LastUsedAt,
	}
	for _, action := range []domain.ActionType{domain.ActionInvite, domain.ActionMessage, domain.ActionAddContact} {
		c := acc.Counter(action)
		health.Counters[string(action)] = ActionUsage{
			Today:    c.Today,
			ThisHour: c.HourlyCount(now),
			LastAt:   c.LastAt,
		}
	}
	return health, nil
}

// GetRecoveryStats returns a snapshot of the recovery queue
func (u *UseCase) GetRecoveryStats(ctx context.Context) (*domain.RecoveryStats, error) {
	size, oldest, err := u.queue.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("recovery queue stats: %w", err)
	}
	return &domain.RecoveryStats{
		QueueSize:              size,
		OldestDueAt:            oldest,
		RecentlyRecoveredCount: u.sweeper.RecentlyRecovered(),
	}, nil
}

// RegisterAccount adds a new account to the pool
func (u *UseCase) RegisterAccount(ctx context.Context, userID int64, phone string) (*entities.Account, error) {
	acc := &entities.Account{
		ID:     uuid.NewString(),
		UserID: userID,
		Phone:  phone,
		Status: domain.StatusActive,
	}
	if err := u.repo.Create(ctx, acc); err != nil {
		return nil, fmt.Errorf("register account: %w", err)
	}
	u.logger.Info().
		Str("account_id", acc.ID).
		Int64("user_id", userID).
		Msg("Account registered")
	return acc, nil
}

// ListAccounts returns all accounts owned by a user
func (u *UseCase) ListAccounts(ctx context.Context, userID int64) ([]*entities.Account, error) {
	return u.repo.ListByUser(ctx, userID)
}

type usageItem struct {
	action  domain.ActionType
	channel string
}

// expandUsage flattens reported usage into individual recorded attempts.
// Invites are distributed across the channels the caller reports using.
func expandUsage(stats domain.UsageStats) []usageItem {
	items := make([]usageItem, 0, stats.InvitesSent+stats.MessagesSent+stats.ContactsAdded)
	for i := 0; i < stats.InvitesSent; i++ {
		channel := ""
		if len(stats.ChannelsUsed) > 0 {
			channel = stats.ChannelsUsed[i%len(stats.ChannelsUsed)]
		}
		items = append(items, usageItem{action: domain.ActionInvite, channel: channel})
	}
	for i := 0; i < stats.MessagesSent; i++ {
		items = append(items, usageItem{action: domain.ActionMessage})
	}
	for i := 0; i < stats.ContactsAdded; i++ {
		items = append(items, usageItem{action: domain.ActionAddContact})
	}
	return items
}

func exhaustedChannels(acc *entities.Account, ceiling int) int {
	if ceiling <= 0 {
		return 0
	}
	n := 0
	for _, ch := range acc.Channels {
		if ch.Lifetime >= ceiling {
			n++
		}
	}
	return n
}

func lastUsed(acc *entities.Account) time.Time {
	if acc.LastUsedAt == nil {
		return time.Time{}
	}
	return *acc.LastUsedAt
}

// withRetry runs fn with bounded retries and backoff for transient
// store/lock-provider failures, surfacing ErrInfrastructure when exhausted
func (u *UseCase) withRetry(ctx context.Context, op string, fn func() error) error {
	attempts := u.cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := u.cfg.RetryBackoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		u.logger.Warn().Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Msg("Transient infrastructure error, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%s failed after %d attempts: %w: %w", op, attempts, domain.ErrInfrastructure, err)
}
