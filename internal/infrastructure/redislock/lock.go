package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/deps"
)

// releaseScript deletes the key only when the caller still owns it, so a
// release arriving after TTL expiry can never free somebody else's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Provider implements deps.LockProvider on Redis. Acquisition is a single
// SET NX PX, so exactly one owner token can hold a key at a time and the
// TTL is authoritative: Redis frees the key itself when it expires.
type Provider struct {
	client *redis.Client
	prefix string
}

// NewProvider creates a Redis lock provider. All keys are namespaced with
// the given prefix.
func NewProvider(client *redis.Client, prefix string) deps.LockProvider {
	if prefix == "" {
		prefix = "account:lock:"
	}
	return &Provider{client: client, prefix: prefix}
}

func (p *Provider) key(k string) string {
	return p.prefix + k
}

// TryAcquire attempts to take the lock without blocking. Returns false when
// another owner currently holds the key.
func (p *Provider) TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ok, err := p.client.SetNX(ctx, p.key(key), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// Release frees the lock if owner still holds it. Returns false when the
// key was already gone or held by a different owner.
func (p *Provider) Release(ctx context.Context, key, owner string) (bool, error) {
	deleted, err := releaseScript.Run(ctx, p.client, []string{p.key(key)}, owner).Int()
	if err != nil {
		return false, fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return deleted == 1, nil
}

// Exists reports whether the lock key is currently held by anyone
func (p *Provider) Exists(ctx context.Context, key string) (bool, error) {
	n, err := p.client.Exists(ctx, p.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check lock %s: %w", key, err)
	}
	return n > 0, nil
}
