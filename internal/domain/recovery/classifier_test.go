package recovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/entities"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/repository/memory"
	"github.com/Theoretician9/content-factory-sub003/internal/infrastructure/metrics"
)

// fakePublisher records published events for assertions
type fakePublisher struct {
	mu     sync.Mutex
	events []domain.AccountEvent
}

func (p *fakePublisher) PublishAccountEvent(_ context.Context, event domain.AccountEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) published() []domain.AccountEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.AccountEvent, len(p.events))
	copy(out, p.events)
	return out
}

func newTestClassifier(t *testing.T) (*Classifier, *memory.Repository, *memory.RecoveryQueue, *fakePublisher) {
	t.Helper()
	repo := memory.NewRepository()
	queue := memory.NewRecoveryQueue()
	events := &fakePublisher{}
	c := NewClassifier(repo, queue, events, DefaultConfig(), zerolog.Nop(), metrics.GetDefaultMetrics())
	return c, repo, queue, events
}

func seedAccount(t *testing.T, repo *memory.Repository, id string, status domain.AccountStatus) {
	t.Helper()
	err := repo.Create(context.Background(), &entities.Account{
		ID:       id,
		UserID:   1,
		Status:   status,
		Channels: make(map[string]*entities.ChannelUsage),
	})
	if err != nil {
		t.Fatalf("Failed to seed account: %v", err)
	}
}

func TestParseWaitSeconds(t *testing.T) {
	tests := []struct {
		message string
		want    time.Duration
		ok      bool
	}{
		{"FLOOD_WAIT_300", 300 * time.Second, true},
		{"rpc error code 420: FLOOD_WAIT_23", 23 * time.Second, true},
		{"A wait of 120 seconds is required", 120 * time.Second, true},
		{"Too Many Requests: retry after 42", 42 * time.Second, true},
		{"PEER_FLOOD", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseWaitSeconds(tt.message)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseWaitSeconds(%q) = (%v, %v), want (%v, %v)", tt.message, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHandleError_FloodWait(t *testing.T) {
	c, repo, queue, events := newTestClassifier(t)
	seedAccount(t, repo, "acc-1", domain.StatusActive)

	before := time.Now().UTC()
	status, err := c.HandleError(context.Background(), "acc-1", domain.ErrorKindFloodWait, "FLOOD_WAIT_300")
	after := time.Now().UTC()
	if err != nil {
		t.Fatalf("HandleError failed: %v", err)
	}
	if status != domain.StatusFloodWait {
		t.Fatalf("Expected status flood_wait, got %s", status)
	}

	acc, _ := repo.GetByID(context.Background(), "acc-1")
	if acc.FloodWaitUntil == nil {
		t.Fatal("Expected FloodWaitUntil to be set")
	}
	// 300s parsed wait plus the 60s safety buffer
	delay := 300*time.Second + DefaultConfig().FloodWaitBuffer
	if acc.FloodWaitUntil.Before(before.Add(delay)) || acc.FloodWaitUntil.After(after.Add(delay)) {
		t.Errorf("FloodWaitUntil %v outside expected window around now+%v", acc.FloodWaitUntil, delay)
	}

	entries, _ := queue.Due(context.Background(), acc.FloodWaitUntil.Add(time.Second))
	if len(entries) != 1 || entries[0].AccountID != "acc-1" {
		t.Fatalf("Expected one recovery entry for acc-1, got %v", entries)
	}
	if !entries[0].DueAt.Equal(*acc.FloodWaitUntil) {
		t.Errorf("Recovery due at %v, want %v", entries[0].DueAt, *acc.FloodWaitUntil)
	}

	published := events.published()
	if len(published) != 1 || published[0].EventType != domain.EventStatusChanged {
		t.Errorf("Expected one status_changed event, got %v", published)
	}
}

func TestHandleError_FloodWaitFallback(t *testing.T) {
	c, repo, _, _ := newTestClassifier(t)
	seedAccount(t, repo, "acc-1", domain.StatusActive)

	before := time.Now().UTC()
	_, err := c.HandleError(context.Background(), "acc-1", domain.ErrorKindFloodWait, "too many requests, slow down")
	if err != nil {
		t.Fatalf("HandleError failed: %v", err)
	}

	acc, _ := repo.GetByID(context.Background(), "acc-1")
	cfg := DefaultConfig()
	minUntil := before.Add(cfg.FloodWaitFallback + cfg.FloodWaitBuffer)
	if acc.FloodWaitUntil == nil || acc.FloodWaitUntil.Before(minUntil) {
		t.Errorf("Expected fallback delay of at least %v, got %v", cfg.FloodWaitFallback+cfg.FloodWaitBuffer, acc.FloodWaitUntil)
	}
}

func TestHandleError_PeerFlood(t *testing.T) {
	c, repo, queue, _ := newTestClassifier(t)
	seedAccount(t, repo, "acc-1", domain.StatusActive)

	status, err := c.HandleError(context.Background(), "acc-1", domain.ErrorKindPeerFlood, "PEER_FLOOD")
	if err != nil {
		t.Fatalf("HandleError failed: %v", err)
	}
	if status != domain.StatusBlocked {
		t.Fatalf("Expected status blocked, got %s", status)
	}

	acc, _ := repo.GetByID(context.Background(), "acc-1")
	if acc.BlockedUntil == nil {
		t.Fatal("Expected BlockedUntil to be set")
	}
	if until := time.Until(*acc.BlockedUntil); until < 23*time.Hour {
		t.Errorf("Expected roughly 24h block, got %v", until)
	}

	size, _, _ := queue.Stats(context.Background())
	if size != 1 {
		t.Errorf("Expected one recovery entry, got %d", size)
	}
}

func TestHandleError_BannedIsTerminal(t *testing.T) {
	c, repo, queue, events := newTestClassifier(t)
	seedAccount(t, repo, "acc-1", domain.StatusActive)

	status, err := c.HandleError(context.Background(), "acc-1", domain.ErrorKindBanned, "USER_DEACTIVATED_BAN")
	if err != nil {
		t.Fatalf("HandleError failed: %v", err)
	}
	if status != domain.StatusDisabled {
		t.Fatalf("Expected status disabled, got %s", status)
	}

	acc, _ := repo.GetByID(context.Background(), "acc-1")
	if acc.FloodWaitUntil != nil || acc.BlockedUntil != nil {
		t.Error("Expected timed fields cleared on disable")
	}

	// Disabled accounts never enter the recovery queue
	size, _, _ := queue.Stats(context.Background())
	if size != 0 {
		t.Errorf("Expected empty recovery queue, got %d entries", size)
	}

	published := events.published()
	if len(published) != 1 || published[0].EventType != domain.EventAccountDisabled {
		t.Errorf("Expected one account.disabled event, got %v", published)
	}
}

func TestHandleError_UnknownEscalation(t *testing.T) {
	c, repo, queue, _ := newTestClassifier(t)
	seedAccount(t, repo, "acc-1", domain.StatusActive)

	threshold := DefaultConfig().ErrorThreshold
	for i := 0; i < threshold-1; i++ {
		status, err := c.HandleError(context.Background(), "acc-1", domain.ErrorKindUnknown, "timeout")
		if err != nil {
			t.Fatalf("HandleError failed: %v", err)
		}
		if status != domain.StatusActive {
			t.Fatalf("Expected status active below threshold, got %s after %d errors", status, i+1)
		}
	}

	acc, _ := repo.GetByID(context.Background(), "acc-1")
	if acc.ConsecutiveErrors != threshold-1 {
		t.Errorf("Expected %d consecutive errors, got %d", threshold-1, acc.ConsecutiveErrors)
	}

	// The threshold error escalates to blocked and resets the counter
	status, err := c.HandleError(context.Background(), "acc-1", domain.ErrorKindUnknown, "timeout")
	if err != nil {
		t.Fatalf("HandleError failed: %v", err)
	}
	if status != domain.StatusBlocked {
		t.Fatalf("Expected status blocked at threshold, got %s", status)
	}

	acc, _ = repo.GetByID(context.Background(), "acc-1")
	if acc.ConsecutiveErrors != 0 {
		t.Errorf("Expected consecutive errors reset, got %d", acc.ConsecutiveErrors)
	}
	size, _, _ := queue.Stats(context.Background())
	if size != 1 {
		t.Errorf("Expected one recovery entry, got %d", size)
	}
}

func TestHandleError_DisabledStaysDisabled(t *testing.T) {
	c, repo, queue, _ := newTestClassifier(t)
	seedAccount(t, repo, "acc-1", domain.StatusDisabled)

	status, err := c.HandleError(context.Background(), "acc-1", domain.ErrorKindFloodWait, "FLOOD_WAIT_60")
	if err != nil {
		t.Fatalf("HandleError failed: %v", err)
	}
	if status != domain.StatusDisabled {
		t.Errorf("Expected disabled to stay disabled, got %s", status)
	}

	acc, _ := repo.GetByID(context.Background(), "acc-1")
	if acc.FloodWaitUntil != nil {
		t.Error("Expected no flood wait timer on a disabled account")
	}
	size, _, _ := queue.Stats(context.Background())
	if size != 0 {
		t.Errorf("Expected empty recovery queue, got %d entries", size)
	}
}
