package ratelimit

import (
	"time"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
)

// Policy holds the static limits for one action type. Limits <= 0 disable
// the corresponding rule. Loaded once from configuration, immutable at
// runtime: the platform documentation disagrees with itself on some figures
// (2 vs 5 invites per hour), so nothing here is hard-coded.
type Policy struct {
	DailyLimit         int
	HourlyLimit        int
	PerChannelDaily    int
	PerChannelLifetime int
	Cooldown           time.Duration
	BurstLimit         int
	BurstCooldown      time.Duration
}

// PolicySet maps action types to their policies
type PolicySet map[domain.ActionType]Policy

// Get returns the policy for an action type, falling back to a zero policy
// (everything disabled) for unknown actions
func (s PolicySet) Get(action domain.ActionType) Policy {
	return s[action]
}

// DefaultPolicies returns the conservative built-in limits. The per-channel
// lifetime ceiling of 200 invites is a hard platform constant: once reached
// the account is permanently ineligible for that channel.
func DefaultPolicies() PolicySet {
	return PolicySet{
		domain.ActionInvite: {
			DailyLimit:         30,
			HourlyLimit:        2,
			PerChannelDaily:    15,
			PerChannelLifetime: 200,
			Cooldown:           15 * time.Minute,
			BurstLimit:         3,
			BurstCooldown:      time.Hour,
		},
		domain.ActionMessage: {
			DailyLimit:    40,
			HourlyLimit:   5,
			Cooldown:      5 * time.Minute,
			BurstLimit:    5,
			BurstCooldown: 30 * time.Minute,
		},
		domain.ActionAddContact: {
			DailyLimit:    15,
			HourlyLimit:   3,
			Cooldown:      10 * time.Minute,
			BurstLimit:    3,
			BurstCooldown: time.Hour,
		},
	}
}
