package ratelimit

import (
	"time"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/entities"
)

// Denial reasons reported to callers. Callers use these to decide whether
// to queue, skip or alert an operator.
const (
	ReasonDailyLimit     = "daily_limit"
	ReasonHourlyLimit    = "hourly_limit"
	ReasonCooldown       = "cooldown"
	ReasonBurst          = "burst"
	ReasonChannelDaily   = "per_channel_daily"
	ReasonChannelCeiling = "per_channel_ceiling"
)

// Decision is the outcome of an eligibility check. The limiter never fails:
// it always produces a definite decision.
type Decision struct {
	Allowed bool `json:"allowed"`

	// NextAvailableAt is the earliest retry time for timed denials.
	// Zero for permanent denials (per-channel lifetime ceiling).
	NextAvailableAt time.Time `json:"next_available_at,omitempty"`

	Reason string `json:"reason,omitempty"`
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string, next time.Time) Decision {
	return Decision{Allowed: false, Reason: reason, NextAvailableAt: next}
}

// Limiter is pure logic over an account's usage counters
type Limiter struct {
	policies PolicySet
}

// NewLimiter creates a limiter for the given policy set
func NewLimiter(policies PolicySet) *Limiter {
	return &Limiter{policies: policies}
}

// Policies returns the configured policy set
func (l *Limiter) Policies() PolicySet {
	return l.policies
}

// nextMidnightUTC is when daily counters reset
func nextMidnightUTC(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

// CheckEligibility decides whether the account may perform the action now.
// Rules are evaluated in order, short-circuiting at the first violation:
// daily limit, hourly limit, cooldown, burst, per-channel (invites only,
// when targetChannel is given).
func (l *Limiter) CheckEligibility(acc *entities.Account, action domain.ActionType, targetChannel string, now time.Time) Decision {
	p := l.policies.Get(action)
	c := acc.Counter(action)
	if c == nil {
		return allow()
	}

	if p.DailyLimit > 0 && c.Today >= p.DailyLimit {
		return deny(ReasonDailyLimit, nextMidnightUTC(now))
	}

	if p.HourlyLimit > 0 && c.HourlyCount(now) >= p.HourlyLimit {
		return deny(ReasonHourlyLimit, c.HourStart.Add(time.Hour))
	}

	if p.Cooldown > 0 && c.LastAt != nil {
		if since := now.Sub(*c.LastAt); since < p.Cooldown {
			return deny(ReasonCooldown, c.LastAt.Add(p.Cooldown))
		}
	}

	if p.BurstLimit > 0 && c.BurstActive(now, p.BurstCooldown) && c.BurstCount >= p.BurstLimit {
		return deny(ReasonBurst, c.BurstStart.Add(p.BurstCooldown))
	}

	if action == domain.ActionInvite && targetChannel != "" {
		if ch, ok := acc.Channels[targetChannel]; ok {
			// Lifetime ceiling is a hard cap, never negotiable: no retry time.
			if p.PerChannelLifetime > 0 && ch.Lifetime >= p.PerChannelLifetime {
				return deny(ReasonChannelCeiling, time.Time{})
			}
			if p.PerChannelDaily > 0 && ch.Today >= p.PerChannelDaily {
				return deny(ReasonChannelDaily, nextMidnightUTC(now))
			}
		}
	}

	return allow()
}

// RecordAction registers one attempt against the account's counters and
// updates the last-used timestamp. Counters increment regardless of whether
// the attempt succeeded, since the platform enforces limits on attempts.
// On failure the caller additionally routes the error to the classifier.
func (l *Limiter) RecordAction(acc *entities.Account, action domain.ActionType, targetChannel string, now time.Time) {
	p := l.policies.Get(action)
	if c := acc.Counter(action); c != nil {
		c.Record(now, p.BurstCooldown)
	}

	if action == domain.ActionInvite && targetChannel != "" {
		ch := acc.Channel(targetChannel)
		ch.Today++
		ch.Lifetime++
	}

	at := now
	acc.LastUsedAt = &at
}

// StatusAfterUsage computes the post-release quota status: rate_limited when
// every limited action type has exhausted its daily quota, active otherwise.
// rate_limited accounts return to active at the daily reset.
func (l *Limiter) StatusAfterUsage(acc *entities.Account) domain.AccountStatus {
	limited := 0
	exhausted := 0
	for _, action := range []domain.ActionType{domain.ActionInvite, domain.ActionMessage, domain.ActionAddContact} {
		p := l.policies.Get(action)
		if p.DailyLimit <= 0 {
			continue
		}
		limited++
		if acc.Counter(action).Today >= p.DailyLimit {
			exhausted++
		}
	}
	if limited > 0 && exhausted == limited {
		return domain.StatusRateLimited
	}
	return domain.StatusActive
}
