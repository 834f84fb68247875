package adapters

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/crypto-academy/academy/ports"
)

// RedisCache implements Cache on top of Redis with one TTL for every key.
// Redis failures are logged and read as a miss: the cache never fails its caller.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger zerolog.Logger
}

// NewRedisCache creates a Redis-backed cache.
func NewRedisCache(rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisCache {
	return &RedisCache{
		rdb:    rdb,
		ttl:    ttl,
		prefix: "academy:cache:",
		logger: logger.With().Str("component", "redis_cache").Logger(),
	}
}

// NewRedisClient initializes a redis client from connection details.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error { return c.rdb.Close() }

// Get retrieves a value; expiry is enforced by Redis itself.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("key", key).Msg("Redis get failed, treating as miss")
		}
		return nil, false
	}
	return val, true
}

// Set stores a value with the cache TTL, overwriting any previous value.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.rdb.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Redis set failed, entry not cached")
	}
	return nil
}

var _ ports.Cache = (*RedisCache)(nil)
