package logger

import (
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/Theoretician9/content-factory-sub003/config"
)

// Module provides logger for fx DI
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)

// NewLogger creates a new logger from config
func NewLogger(cfg *config.LoggingConfig) zerolog.Logger {
	return New(cfg.Level)
}
