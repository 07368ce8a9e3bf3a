package maintenance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/entities"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/repository/memory"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/recovery"
	"github.com/Theoretician9/content-factory-sub003/internal/infrastructure/metrics"
)

type memLock struct {
	mu   sync.Mutex
	held map[string]string
}

func newMemLock() *memLock {
	return &memLock{held: make(map[string]string)}
}

func (l *memLock) TryAcquire(_ context.Context, key, owner string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return false, nil
	}
	l.held[key] = owner
	return true, nil
}

func (l *memLock) Release(_ context.Context, key, owner string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != owner {
		return false, nil
	}
	delete(l.held, key)
	return true, nil
}

func (l *memLock) Exists(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok, nil
}

type nopPublisher struct{}

func (nopPublisher) PublishAccountEvent(context.Context, domain.AccountEvent) error { return nil }

func newTestScheduler(t *testing.T) (*Scheduler, *memory.Repository, *memory.RecoveryQueue, *memLock) {
	t.Helper()
	repo := memory.NewRepository()
	queue := memory.NewRecoveryQueue()
	locks := newMemLock()
	sweeper := recovery.NewSweeper(repo, queue, nopPublisher{}, zerolog.Nop(), metrics.GetDefaultMetrics())
	s := NewScheduler(repo, queue, locks, sweeper, DefaultConfig(), zerolog.Nop(), metrics.GetDefaultMetrics())
	return s, repo, queue, locks
}

func TestRunDailyReset(t *testing.T) {
	s, repo, _, _ := newTestScheduler(t)

	err := repo.Create(context.Background(), &entities.Account{
		ID:     "acc-1",
		UserID: 1,
		Status: domain.StatusRateLimited,
		Invites: entities.ActionCounter{
			Today: 30,
		},
		Messages: entities.ActionCounter{
			Today: 12,
		},
		Channels: map[string]*entities.ChannelUsage{
			"ch-1": {ChannelID: "ch-1", Today: 15, Lifetime: 180},
		},
	})
	if err != nil {
		t.Fatalf("Failed to seed account: %v", err)
	}

	s.runDailyReset(context.Background())

	acc, _ := repo.GetByID(context.Background(), "acc-1")
	if acc.Invites.Today != 0 || acc.Messages.Today != 0 {
		t.Errorf("Expected daily counters zeroed, got %d/%d", acc.Invites.Today, acc.Messages.Today)
	}
	if acc.Status != domain.StatusActive {
		t.Errorf("Expected rate_limited account reactivated, got %s", acc.Status)
	}
	ch := acc.Channels["ch-1"]
	if ch.Today != 0 {
		t.Errorf("Expected channel daily counter zeroed, got %d", ch.Today)
	}
	// Lifetime ceilings survive the daily reset
	if ch.Lifetime != 180 {
		t.Errorf("Expected channel lifetime untouched, got %d", ch.Lifetime)
	}
}

func TestRunDailyReset_Idempotent(t *testing.T) {
	s, repo, _, _ := newTestScheduler(t)

	err := repo.Create(context.Background(), &entities.Account{
		ID:      "acc-1",
		UserID:  1,
		Status:  domain.StatusActive,
		Invites: entities.ActionCounter{Today: 5},
	})
	if err != nil {
		t.Fatalf("Failed to seed account: %v", err)
	}

	s.runDailyReset(context.Background())
	s.runDailyReset(context.Background())

	acc, _ := repo.GetByID(context.Background(), "acc-1")
	if acc.Invites.Today != 0 || acc.Status != domain.StatusActive {
		t.Errorf("Expected stable state after repeated reset, got %d/%s", acc.Invites.Today, acc.Status)
	}
}

func TestRunStaleLockReconciliation(t *testing.T) {
	s, repo, _, locks := newTestScheduler(t)
	now := time.Now().UTC()

	// Lock key expired in Redis, row still marked locked
	gone := now.Add(-time.Minute)
	err := repo.Create(context.Background(), &entities.Account{
		ID:            "acc-stale",
		UserID:        1,
		Status:        domain.StatusLocked,
		LockOwner:     "svc:dead-token",
		LockExpiresAt: &gone,
	})
	if err != nil {
		t.Fatalf("Failed to seed account: %v", err)
	}

	// Healthy lease: key held, not expired
	live := now.Add(time.Hour)
	err = repo.Create(context.Background(), &entities.Account{
		ID:            "acc-live",
		UserID:        1,
		Status:        domain.StatusLocked,
		LockOwner:     "svc:live-token",
		LockExpiresAt: &live,
	})
	if err != nil {
		t.Fatalf("Failed to seed account: %v", err)
	}
	if ok, _ := locks.TryAcquire(context.Background(), "acc-live", "svc:live-token", time.Hour); !ok {
		t.Fatal("Failed to seed lock key")
	}

	s.runStaleLockReconciliation(context.Background())

	stale, _ := repo.GetByID(context.Background(), "acc-stale")
	if stale.Status != domain.StatusActive || stale.LockOwner != "" || stale.LockExpiresAt != nil {
		t.Errorf("Expected stale lock reclaimed, got %s owner=%q", stale.Status, stale.LockOwner)
	}

	liveAcc, _ := repo.GetByID(context.Background(), "acc-live")
	if liveAcc.Status != domain.StatusLocked || liveAcc.LockOwner != "svc:live-token" {
		t.Errorf("Expected healthy lease untouched, got %s owner=%q", liveAcc.Status, liveAcc.LockOwner)
	}
}

func TestRunRecoverySweep(t *testing.T) {
	s, repo, queue, _ := newTestScheduler(t)
	now := time.Now().UTC()

	until := now.Add(-time.Second)
	err := repo.Create(context.Background(), &entities.Account{
		ID:             "acc-1",
		UserID:         1,
		Status:         domain.StatusFloodWait,
		FloodWaitUntil: &until,
	})
	if err != nil {
		t.Fatalf("Failed to seed account: %v", err)
	}
	_ = queue.Upsert(context.Background(), "acc-1", until, "flood_wait")

	s.runRecoverySweep(context.Background())

	acc, _ := repo.GetByID(context.Background(), "acc-1")
	if acc.Status != domain.StatusActive {
		t.Errorf("Expected recovered account, got %s", acc.Status)
	}
	size, _, _ := queue.Stats(context.Background())
	if size != 0 {
		t.Errorf("Expected empty queue after sweep, got %d", size)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s, _, _, _ := newTestScheduler(t)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestSchedulerStart_InvalidSpec(t *testing.T) {
	repo := memory.NewRepository()
	queue := memory.NewRecoveryQueue()
	sweeper := recovery.NewSweeper(repo, queue, nopPublisher{}, zerolog.Nop(), metrics.GetDefaultMetrics())

	cfg := DefaultConfig()
	cfg.DailyResetSpec = "not a cron spec"
	s := NewScheduler(repo, queue, newMemLock(), sweeper, cfg, zerolog.Nop(), metrics.GetDefaultMetrics())

	if err := s.Start(); err == nil {
		t.Fatal("Expected error for invalid cron spec")
	}
}
