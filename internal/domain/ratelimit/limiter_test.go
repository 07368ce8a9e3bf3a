package ratelimit

import (
	"testing"
	"time"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/entities"
)

func testAccount() *entities.Account {
	return &entities.Account{
		ID:       "acc-1",
		UserID:   1,
		Status:   domain.StatusActive,
		Channels: make(map[string]*entities.ChannelUsage),
	}
}

func TestCheckEligibility_Cooldown(t *testing.T) {
	limiter := NewLimiter(DefaultPolicies())
	acc := testAccount()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.RecordAction(acc, domain.ActionInvite, "ch-1", t0)

	// 100 seconds later: still inside the 15 minute cooldown
	decision := limiter.CheckEligibility(acc, domain.ActionInvite, "", t0.Add(100*time.Second))
	if decision.Allowed {
		t.Fatal("Expected denial during cooldown")
	}
	if decision.Reason != ReasonCooldown {
		t.Errorf("Expected reason %q, got %q", ReasonCooldown, decision.Reason)
	}
	if want := t0.Add(15 * time.Minute); !decision.NextAvailableAt.Equal(want) {
		t.Errorf("Expected next available at %v, got %v", want, decision.NextAvailableAt)
	}

	// 901 seconds later: cooldown elapsed
	decision = limiter.CheckEligibility(acc, domain.ActionInvite, "", t0.Add(901*time.Second))
	if !decision.Allowed {
		t.Errorf("Expected allow after cooldown, got denial: %s", decision.Reason)
	}
}

func TestCheckEligibility_DailyLimit(t *testing.T) {
	limiter := NewLimiter(DefaultPolicies())
	acc := testAccount()
	acc.Invites.Today = 30

	now := time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)
	decision := limiter.CheckEligibility(acc, domain.ActionInvite, "", now)
	if decision.Allowed {
		t.Fatal("Expected denial at daily limit")
	}
	if decision.Reason != ReasonDailyLimit {
		t.Errorf("Expected reason %q, got %q", ReasonDailyLimit, decision.Reason)
	}
	if want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC); !decision.NextAvailableAt.Equal(want) {
		t.Errorf("Expected next available at midnight UTC, got %v", decision.NextAvailableAt)
	}
}

func TestCheckEligibility_HourlyWindow(t *testing.T) {
	limiter := NewLimiter(DefaultPolicies())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	acc := testAccount()
	acc.Invites.HourStart = now.Add(-10 * time.Minute)
	acc.Invites.ThisHour = 2

	decision := limiter.CheckEligibility(acc, domain.ActionInvite, "", now)
	if decision.Allowed {
		t.Fatal("Expected denial at hourly limit")
	}
	if decision.Reason != ReasonHourlyLimit {
		t.Errorf("Expected reason %q, got %q", ReasonHourlyLimit, decision.Reason)
	}

	// A bucket older than one hour contributes nothing
	acc.Invites.HourStart = now.Add(-61 * time.Minute)
	decision = limiter.CheckEligibility(acc, domain.ActionInvite, "", now)
	if !decision.Allowed {
		t.Errorf("Expected allow after hourly window rolled, got denial: %s", decision.Reason)
	}
}

func TestCheckEligibility_Burst(t *testing.T) {
	// Cooldown disabled to exercise the burst rule in isolation
	policies := PolicySet{
		domain.ActionMessage: {
			DailyLimit:    40,
			BurstLimit:    3,
			BurstCooldown: time.Hour,
		},
	}
	limiter := NewLimiter(policies)
	acc := testAccount()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		limiter.RecordAction(acc, domain.ActionMessage, "", t0.Add(time.Duration(i)*time.Minute))
	}

	decision := limiter.CheckEligibility(acc, domain.ActionMessage, "", t0.Add(5*time.Minute))
	if decision.Allowed {
		t.Fatal("Expected denial at burst limit")
	}
	if decision.Reason != ReasonBurst {
		t.Errorf("Expected reason %q, got %q", ReasonBurst, decision.Reason)
	}
	if want := t0.Add(time.Hour); !decision.NextAvailableAt.Equal(want) {
		t.Errorf("Expected next available at %v, got %v", want, decision.NextAvailableAt)
	}

	// Burst window elapsed: a new burst may start
	decision = limiter.CheckEligibility(acc, domain.ActionMessage, "", t0.Add(61*time.Minute))
	if !decision.Allowed {
		t.Errorf("Expected allow after burst window, got denial: %s", decision.Reason)
	}
}

func TestCheckEligibility_ChannelDaily(t *testing.T) {
	limiter := NewLimiter(DefaultPolicies())
	acc := testAccount()
	acc.Channels["ch-1"] = &entities.ChannelUsage{ChannelID: "ch-1", Today: 15, Lifetime: 20}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	decision := limiter.CheckEligibility(acc, domain.ActionInvite, "ch-1", now)
	if decision.Allowed {
		t.Fatal("Expected denial at per-channel daily limit")
	}
	if decision.Reason != ReasonChannelDaily {
		t.Errorf("Expected reason %q, got %q", ReasonChannelDaily, decision.Reason)
	}

	// A different channel is unaffected
	decision = limiter.CheckEligibility(acc, domain.ActionInvite, "ch-2", now)
	if !decision.Allowed {
		t.Errorf("Expected allow for unused channel, got denial: %s", decision.Reason)
	}
}

func TestCheckEligibility_ChannelCeilingIsPermanent(t *testing.T) {
	limiter := NewLimiter(DefaultPolicies())
	acc := testAccount()
	acc.Channels["ch-1"] = &entities.ChannelUsage{ChannelID: "ch-1", Today: 0, Lifetime: 200}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	decision := limiter.CheckEligibility(acc, domain.ActionInvite, "ch-1", now)
	if decision.Allowed {
		t.Fatal("Expected denial at lifetime ceiling")
	}
	if decision.Reason != ReasonChannelCeiling {
		t.Errorf("Expected reason %q, got %q", ReasonChannelCeiling, decision.Reason)
	}
	if !decision.NextAvailableAt.IsZero() {
		t.Errorf("Lifetime ceiling denial must not carry a retry time, got %v", decision.NextAvailableAt)
	}

	// The ceiling survives daily resets: Today is zero and it still denies,
	// even days later
	decision = limiter.CheckEligibility(acc, domain.ActionInvite, "ch-1", now.AddDate(0, 0, 7))
	if decision.Allowed {
		t.Error("Expected lifetime ceiling to persist across days")
	}
}

func TestRecordAction(t *testing.T) {
	limiter := NewLimiter(DefaultPolicies())
	acc := testAccount()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.RecordAction(acc, domain.ActionInvite, "ch-1", t0)

	if acc.Invites.Today != 1 {
		t.Errorf("Expected invite today count 1, got %d", acc.Invites.Today)
	}
	if got := acc.Invites.HourlyCount(t0); got != 1 {
		t.Errorf("Expected hourly count 1, got %d", got)
	}
	ch := acc.Channels["ch-1"]
	if ch == nil || ch.Today != 1 || ch.Lifetime != 1 {
		t.Errorf("Expected channel usage 1/1, got %+v", ch)
	}
	if acc.LastUsedAt == nil || !acc.LastUsedAt.Equal(t0) {
		t.Errorf("Expected last used at %v, got %v", t0, acc.LastUsedAt)
	}

	// The hourly bucket rolls over after an hour
	t1 := t0.Add(2 * time.Hour)
	limiter.RecordAction(acc, domain.ActionInvite, "ch-1", t1)
	if acc.Invites.Today != 2 {
		t.Errorf("Expected invite today count 2, got %d", acc.Invites.Today)
	}
	if got := acc.Invites.HourlyCount(t1); got != 1 {
		t.Errorf("Expected hourly count 1 after window roll, got %d", got)
	}
}

func TestStatusAfterUsage(t *testing.T) {
	limiter := NewLimiter(DefaultPolicies())
	acc := testAccount()

	acc.Invites.Today = 30
	acc.Messages.Today = 40
	acc.Contacts.Today = 14
	if got := limiter.StatusAfterUsage(acc); got != domain.StatusActive {
		t.Errorf("Expected active while contacts remain, got %s", got)
	}

	acc.Contacts.Today = 15
	if got := limiter.StatusAfterUsage(acc); got != domain.StatusRateLimited {
		t.Errorf("Expected rate_limited when all daily quotas are exhausted, got %s", got)
	}
}
