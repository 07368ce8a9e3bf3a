package maintenance

import (
	"context"

	"go.uber.org/fx"

	"github.com/Theoretician9/content-factory-sub003/config"
)

// Module provides the maintenance scheduler for fx DI
var Module = fx.Module("maintenance",
	fx.Provide(
		NewConfigFx,
		NewScheduler,
	),
	fx.Invoke(registerScheduler),
)

// NewConfigFx builds scheduler settings from configuration
func NewConfigFx(cfg *config.MaintenanceConfig) Config {
	return Config{
		RecoverySweepSpec: cfg.RecoverySweepSpec,
		DailyResetSpec:    cfg.DailyResetSpec,
		StaleLockSpec:     cfg.StaleLockSpec,
		HealthSpec:        cfg.HealthSpec,
		JobTimeout:        cfg.JobTimeout,
	}
}

// registerScheduler starts the cron loop with the fx lifecycle
func registerScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})
}
