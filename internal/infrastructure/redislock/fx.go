package redislock

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Theoretician9/content-factory-sub003/config"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/deps"
)

// Module provides the distributed lock provider for fx DI
var Module = fx.Module("redislock",
	fx.Provide(NewProviderFx),
)

// NewProviderFx creates the lock provider from the Redis client
func NewProviderFx(client *redis.Client, cfg *config.RedisConfig) deps.LockProvider {
	return NewProvider(client, cfg.LockPrefix)
}
