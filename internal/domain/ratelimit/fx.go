package ratelimit

import (
	"go.uber.org/fx"

	"github.com/Theoretician9/content-factory-sub003/config"
	"github.com/Theoretician9/content-factory-sub003/internal/domain"
)

// Module provides the rate limiter for fx DI
var Module = fx.Module("ratelimit",
	fx.Provide(
		NewPolicySetFx,
		NewLimiter,
	),
)

// NewPolicySetFx builds the policy set from configuration
func NewPolicySetFx(cfg *config.LimitsConfig) PolicySet {
	return PolicySet{
		domain.ActionInvite:     policyFromConfig(cfg.Invite),
		domain.ActionMessage:    policyFromConfig(cfg.Message),
		domain.ActionAddContact: policyFromConfig(cfg.Contact),
	}
}

func policyFromConfig(c config.ActionLimitConfig) Policy {
	return Policy{
		DailyLimit:         c.Daily,
		HourlyLimit:        c.Hourly,
		PerChannelDaily:    c.PerChannelDaily,
		PerChannelLifetime: c.PerChannelLifetime,
		Cooldown:           c.Cooldown,
		BurstLimit:         c.BurstLimit,
		BurstCooldown:      c.BurstCooldown,
	}
}
