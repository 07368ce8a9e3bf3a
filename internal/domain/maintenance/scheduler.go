package maintenance

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/deps"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/entities"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/recovery"
	"github.com/Theoretician9/content-factory-sub003/internal/infrastructure/metrics"
)

// Config holds the cron specs and timeouts for maintenance jobs
type Config struct {
	RecoverySweepSpec string // e.g. "*/5 * * * *"
	DailyResetSpec    string // e.g. "0 0 * * *" (00:00 UTC)
	StaleLockSpec     string // e.g. "*/15 * * * *"
	HealthSpec        string // e.g. "*/15 * * * *"
	JobTimeout        time.Duration
}

// DefaultConfig returns the built-in maintenance schedule
func DefaultConfig() Config {
	return Config{
		RecoverySweepSpec: "*/5 * * * *",
		DailyResetSpec:    "0 0 * * *",
		StaleLockSpec:     "*/15 * * * *",
		HealthSpec:        "*/15 * * * *",
		JobTimeout:        2 * time.Minute,
	}
}

// Scheduler runs periodic maintenance jobs on a UTC cron. Every job is
// individually idempotent and guarded against overlapping runs, so
// at-least-once execution from multiple scheduler instances is safe.
type Scheduler struct {
	repo    deps.AccountRepository
	queue   deps.RecoveryQueue
	locks   deps.LockProvider
	sweeper *recovery.Sweeper
	cfg     Config
	logger  zerolog.Logger
	metrics *metrics.Metrics

	cron *cron.Cron

	sweepRunning     atomic.Bool
	resetRunning     atomic.Bool
	staleLockRunning atomic.Bool
	healthRunning    atomic.Bool
}

// NewScheduler creates a maintenance scheduler
func NewScheduler(
	repo deps.AccountRepository,
	queue deps.RecoveryQueue,
	locks deps.LockProvider,
	sweeper *recovery.Sweeper,
	cfg Config,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *Scheduler {
	return &Scheduler{
		repo:    repo,
		queue:   queue,
		locks:   locks,
		sweeper: sweeper,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		cron:    cron.New(cron.WithLocation(time.UTC)),
	}
}

// Start registers all jobs and starts the cron loop
func (s *Scheduler) Start() error {
	jobs := []struct {
		name    string
		spec    string
		running *atomic.Bool
		run     func(ctx context.Context)
	}{
		{"recovery_sweep", s.cfg.RecoverySweepSpec, &s.sweepRunning, s.runRecoverySweep},
		{"daily_reset", s.cfg.DailyResetSpec, &s.resetRunning, s.runDailyReset},
		{"stale_lock_reconciliation", s.cfg.StaleLockSpec, &s.staleLockRunning, s.runStaleLockReconciliation},
		{"health_aggregation", s.cfg.HealthSpec, &s.healthRunning, s.runHealthAggregation},
	}

	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() {
			s.runGuarded(job.name, job.running, job.run)
		}); err != nil {
			return err
		}
		s.logger.Info().
			Str("job", job.name).
			Str("spec", job.spec).
			Msg("Maintenance job registered")
	}

	s.cron.Start()
	return nil
}

// Stop stops the cron loop and waits for running jobs to finish
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info().Msg("Maintenance scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runGuarded skips the tick when the previous run is still in progress and
// recovers panics so one broken job cannot kill the scheduler
func (s *Scheduler) runGuarded(name string, running *atomic.Bool, run func(ctx context.Context)) {
	if !running.CompareAndSwap(false, true) {
		s.logger.Warn().Str("job", name).Msg("Previous run still in progress, skipping tick")
		return
	}
	defer running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("job", name).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Maintenance job panic recovered")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()
	run(ctx)
}

func (s *Scheduler) runRecoverySweep(ctx context.Context) {
	start := time.Now()
	recovered, err := s.sweeper.Sweep(ctx, start.UTC())
	if err != nil {
		s.logger.Error().Err(err).Msg("Recovery sweep failed")
		return
	}
	s.metrics.SweepDuration.Observe(time.Since(start).Seconds())

	if size, _, err := s.queue.Stats(ctx); err == nil {
		s.metrics.RecoveryQueueSize.Set(float64(size))
	}

	s.logger.Debug().
		Int("recovered", recovered).
		Dur("duration", time.Since(start)).
		Msg("Recovery sweep completed")
}

// runDailyReset zeroes daily counters and per-channel today fields.
// Per-channel lifetime counters are never reset here.
func (s *Scheduler) runDailyReset(ctx context.Context) {
	now := time.Now().UTC()
	affected, err := s.repo.ResetDailyCounters(ctx, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("Daily counter reset failed")
		return
	}
	s.metrics.DailyResetsTotal.Inc()
	s.logger.Info().
		Int64("accounts", affected).
		Msg("Daily counters reset")
}

// runStaleLockReconciliation reverts accounts still marked locked whose
// backing lock key expired without a Release. Backstop only: the lock TTL
// is the primary expiry mechanism.
func (s *Scheduler) runStaleLockReconciliation(ctx context.Context) {
	now := time.Now().UTC()
	locked, err := s.repo.ListByStatus(ctx, domain.StatusLocked)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list locked accounts")
		return
	}

	reclaimed := 0
	for _, acc := range locked {
		exists, err := s.locks.Exists(ctx, acc.ID)
		if err != nil {
			s.logger.Error().Err(err).
				Str("account_id", acc.ID).
				Msg("Failed to check lock key")
			continue
		}
		expired := acc.LockExpiresAt != nil && now.After(*acc.LockExpiresAt)
		if exists && !expired {
			continue
		}

		owner := acc.LockOwner
		_, err = s.repo.Mutate(ctx, acc.ID, func(a *entities.Account) error {
			// Re-check under the row lock: a racing Release may have already
			// cleared the lock or a new lease may hold a different owner
			if a.Status != domain.StatusLocked || a.LockOwner != owner {
				return nil
			}
			a.Status = domain.StatusActive
			a.LockOwner = ""
			a.LockExpiresAt = nil
			return nil
		})
		if err != nil {
			s.logger.Error().Err(err).
				Str("account_id", acc.ID).
				Msg("Failed to reclaim stale lock")
			continue
		}
		reclaimed++
		s.metrics.StaleLocksReclaimed.Inc()
		s.logger.Warn().
			Str("account_id", acc.ID).
			Str("owner", owner).
			Msg("Reclaimed account with stale lock")
	}

	if reclaimed > 0 || len(locked) > 0 {
		s.logger.Info().
			Int("locked", len(locked)).
			Int("reclaimed", reclaimed).
			Msg("Stale lock reconciliation completed")
	}
}

// runHealthAggregation publishes per-status account counts. Side-effect-free
// with respect to the store.
func (s *Scheduler) runHealthAggregation(ctx context.Context) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to aggregate account health")
		return
	}

	for _, status := range []domain.AccountStatus{
		domain.StatusActive, domain.StatusLocked, domain.StatusRateLimited,
		domain.StatusFloodWait, domain.StatusBlocked, domain.StatusDisabled,
	} {
		s.metrics.AccountsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
