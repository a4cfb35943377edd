package authz

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RoleCache is a shared cache for resolved roles. Implementations must treat
// misses and backend errors identically from the resolver's point of view:
// fall through to the store.
type RoleCache interface {
	Get(ctx context.Context, identity string) (Role, bool, error)
	Set(ctx context.Context, identity string, role Role) error
	Invalidate(ctx context.Context, identity string) error
}

const roleCacheKeyPrefix = "crewdesk:role:"

// RedisRoleCache caches resolved roles in Redis so that multiple server
// instances share invalidations.
type RedisRoleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRoleCache creates a Redis-backed role cache
func NewRedisRoleCache(client *redis.Client, ttl time.Duration) *RedisRoleCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisRoleCache{client: client, ttl: ttl}
}

// Get retrieves a cached role
func (c *RedisRoleCache) Get(ctx context.Context, identity string) (Role, bool, error) {
	val, err := c.client.Get(ctx, roleCacheKeyPrefix+identity).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	role := Role(val)
	if !role.IsValid() {
		// A corrupted entry must not leak into decisions.
		_ = c.Invalidate(ctx, identity)
		return "", false, nil
	}
	return role, true, nil
}

// Set stores a role with the cache TTL
func (c *RedisRoleCache) Set(ctx context.Context, identity string, role Role) error {
	return c.client.Set(ctx, roleCacheKeyPrefix+identity, string(role), c.ttl).Err()
}

// Invalidate removes the cached role for identity
func (c *RedisRoleCache) Invalidate(ctx context.Context, identity string) error {
	return c.client.Del(ctx, roleCacheKeyPrefix+identity).Err()
}
