package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/Theoretician9/content-factory-sub003/config"
)

// Module provides the Redis client for fx DI
var Module = fx.Module("redis",
	fx.Provide(NewClientFx),
)

// NewClientFx creates a Redis client with fx lifecycle management
func NewClientFx(
	lc fx.Lifecycle,
	cfg *config.RedisConfig,
	logger zerolog.Logger,
) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return err
			}
			logger.Info().
				Str("addr", cfg.Addr).
				Msg("Redis connected successfully")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("Closing Redis connection")
			return client.Close()
		},
	})

	return client
}
