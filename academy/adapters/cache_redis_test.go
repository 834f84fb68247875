package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An unreachable Redis must degrade to cache misses instead of failing callers.
func TestRedisCache_UnreachableReadsAsMiss(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	cache := NewRedisCache(rdb, time.Minute, zerolog.Nop())
	defer cache.Close()

	ctx := context.Background()
	assert.NoError(t, cache.Set(ctx, "coins:list", []byte("[]")))

	val, ok := cache.Get(ctx, "coins:list")
	assert.False(t, ok)
	assert.Nil(t, val)

	assert.Error(t, cache.Ping(ctx))
}

func newMiniRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := NewRedisCache(NewRedisClient(mr.Addr(), "", 0), ttl, zerolog.Nop())
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestRedisCache_SetGetRoundTrip(t *testing.T) {
	cache, mr := newMiniRedisCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Ping(ctx))

	_, ok := cache.Get(ctx, "coins:list")
	assert.False(t, ok, "absent key is a miss")

	require.NoError(t, cache.Set(ctx, "coins:list", []byte(`[{"id":"bitcoin"}]`)))
	val, ok := cache.Get(ctx, "coins:list")
	require.True(t, ok)
	assert.Equal(t, []byte(`[{"id":"bitcoin"}]`), val)

	assert.True(t, mr.Exists("academy:cache:coins:list"), "keys are stored under the cache prefix")
	assert.Equal(t, time.Minute, mr.TTL("academy:cache:coins:list"))
}

func TestRedisCache_SetOverwrites(t *testing.T) {
	cache, _ := newMiniRedisCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []byte("first")))
	require.NoError(t, cache.Set(ctx, "k", []byte("second")))

	val, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("second"), val)
}

func TestRedisCache_EntriesExpireAfterTTL(t *testing.T) {
	cache, mr := newMiniRedisCache(t, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []byte("v")))

	mr.FastForward(29 * time.Second)
	_, ok := cache.Get(ctx, "k")
	assert.True(t, ok, "still fresh before the TTL elapses")

	mr.FastForward(2 * time.Second)
	_, ok = cache.Get(ctx, "k")
	assert.False(t, ok, "expired entries read as a miss")
}

func TestRedisCache_ServerGoingAwayReadsAsMiss(t *testing.T) {
	cache, mr := newMiniRedisCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []byte("v")))
	mr.Close()

	_, ok := cache.Get(ctx, "k")
	assert.False(t, ok)
	assert.NoError(t, cache.Set(ctx, "k", []byte("v2")))
}
