package recovery

import (
	"go.uber.org/fx"

	"github.com/Theoretician9/content-factory-sub003/config"
)

// Module provides the failure classifier and recovery sweeper for fx DI
var Module = fx.Module("recovery",
	fx.Provide(
		NewConfigFx,
		NewClassifier,
		NewSweeper,
	),
)

// NewConfigFx builds classifier settings from configuration
func NewConfigFx(cfg *config.RecoveryConfig) Config {
	return Config{
		FloodWaitBuffer:   cfg.FloodWaitBuffer,
		FloodWaitFallback: cfg.FloodWaitFallback,
		BlockDelay:        cfg.BlockDelay,
		ErrorThreshold:    cfg.ErrorThreshold,
	}
}
