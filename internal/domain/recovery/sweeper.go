package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/deps"
	accounterrors "github.com/Theoretician9/content-factory-sub003/internal/domain/account/errors"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/entities"
	"github.com/Theoretician9/content-factory-sub003/internal/infrastructure/metrics"
)

// Sentinels used inside the sweep mutation to distinguish outcomes without
// persisting anything.
var (
	errTimerExtended = errors.New("recovery timer extended by a later error")
	errEntryStale    = errors.New("recovery entry stale")
)

// Sweeper restores accounts from timed failure statuses once their timers
// elapse. Safe to run concurrently with allocation: each transition is a
// single atomic conditional update, never a blind read-then-write.
type Sweeper struct {
	repo   deps.AccountRepository
	queue  deps.RecoveryQueue
	events deps.EventPublisher
	logger zerolog.Logger
	m      *metrics.Metrics

	recovered atomic.Int64
}

// NewSweeper creates a recovery sweeper
func NewSweeper(
	repo deps.AccountRepository,
	queue deps.RecoveryQueue,
	events deps.EventPublisher,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *Sweeper {
	return &Sweeper{
		repo:   repo,
		queue:  queue,
		events: events,
		logger: logger,
		m:      m,
	}
}

// RecentlyRecovered returns the number of accounts recovered since process
// start, for the recovery stats endpoint.
func (s *Sweeper) RecentlyRecovered() int64 {
	return s.recovered.Load()
}

// Sweep pops all due recovery entries and re-checks each account's timed
// field against now. Elapsed timers transition the account back to active;
// timers extended by a later error re-schedule the entry instead of forcing
// recovery. Returns the number of accounts recovered.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	entries, err := s.queue.Due(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due recovery entries: %w", err)
	}

	recovered := 0
	for _, entry := range entries {
		switch err := s.recoverOne(ctx, entry.AccountID, now); {
		case err == nil:
			recovered++
		case errors.Is(err, errTimerExtended):
			// handled inside recoverOne
		case errors.Is(err, errEntryStale), errors.Is(err, accounterrors.ErrNotFound):
			if err := s.queue.Delete(ctx, entry.AccountID); err != nil {
				s.logger.Error().Err(err).
					Str("account_id", entry.AccountID).
					Msg("Failed to drop stale recovery entry")
			}
		default:
			s.logger.Error().Err(err).
				Str("account_id", entry.AccountID).
				Msg("Recovery attempt failed")
		}
	}

	if recovered > 0 {
		s.recovered.Add(int64(recovered))
		s.m.RecoveriesTotal.Add(float64(recovered))
	}
	return recovered, nil
}

func (s *Sweeper) recoverOne(ctx context.Context, accountID string, now time.Time) error {
	var extendedUntil time.Time

	acc, err := s.repo.Mutate(ctx, accountID, func(acc *entities.Account) error {
		switch acc.Status {
		case domain.StatusFloodWait, domain.StatusBlocked:
			if !acc.TimedOut(now) {
				// A later error pushed the timer forward after this entry
				// was enqueued
				if acc.Status == domain.StatusFloodWait && acc.FloodWaitUntil != nil {
					extendedUntil = *acc.FloodWaitUntil
				} else if acc.BlockedUntil != nil {
					extendedUntil = *acc.BlockedUntil
				}
				return errTimerExtended
			}
			acc.Status = domain.StatusActive
			acc.FloodWaitUntil = nil
			acc.BlockedUntil = nil
			acc.ConsecutiveErrors = 0
			return nil
		default:
			return errEntryStale
		}
	})
	if err != nil {
		if errors.Is(err, errTimerExtended) && !extendedUntil.IsZero() {
			if rerr := s.queue.Reschedule(ctx, accountID, extendedUntil); rerr != nil {
				s.logger.Error().Err(rerr).
					Str("account_id", accountID).
					Time("due_at", extendedUntil).
					Msg("Failed to reschedule recovery entry")
			}
		}
		return err
	}

	if err := s.queue.Delete(ctx, accountID); err != nil {
		s.logger.Error().Err(err).
			Str("account_id", accountID).
			Msg("Failed to delete consumed recovery entry")
	}

	s.logger.Info().
		Str("account_id", accountID).
		Msg("Account recovered")

	event := domain.AccountEvent{
		EventType: domain.EventAccountRecovered,
		AccountID: acc.ID,
		UserID:    acc.UserID,
		Status:    string(acc.Status),
		Timestamp: now,
	}
	if err := s.events.PublishAccountEvent(ctx, event); err != nil {
		s.logger.Error().Err(err).
			Str("account_id", acc.ID).
			Msg("Failed to publish recovery event")
	}
	return nil
}
