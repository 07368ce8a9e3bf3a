package main

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/Theoretician9/content-factory-sub003/config"
	"github.com/Theoretician9/content-factory-sub003/internal/app"
)

func main() {
	fx.New(
		app.CreateApp(),
		fx.Invoke(run),
	).Run()
}

func run(
	lc fx.Lifecycle,
	cfg *config.Config,
	logger zerolog.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info().
				Str("service", cfg.Service.Name).
				Str("port", cfg.Service.Port).
				Msg("Starting account pool service")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("Account pool service stopped")
			return nil
		},
	})
}
