package adapters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTTLCache_GetWithinTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	cache := NewTTLCache(60*time.Second, WithClock(clock.Now))

	require.NoError(t, cache.Set(ctx, "x", []byte("42")))

	clock.Advance(100 * time.Millisecond)
	val, ok := cache.Get(ctx, "x")
	require.True(t, ok)
	assert.Equal(t, []byte("42"), val)
}

func TestTTLCache_ExpiredEntryIsAbsentAndRemoved(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	cache := NewTTLCache(60*time.Second, WithClock(clock.Now))

	require.NoError(t, cache.Set(ctx, "x", []byte("42")))
	require.Equal(t, 1, cache.Len())

	clock.Advance(61 * time.Second)
	val, ok := cache.Get(ctx, "x")
	assert.False(t, ok)
	assert.Nil(t, val)
	assert.Equal(t, 0, cache.Len(), "expired entry should be dropped on read")
}

func TestTTLCache_ExactlyTTLIsExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	cache := NewTTLCache(time.Minute, WithClock(clock.Now))

	require.NoError(t, cache.Set(ctx, "k", []byte("v")))
	clock.Advance(time.Minute)

	_, ok := cache.Get(ctx, "k")
	assert.False(t, ok)
}

func TestTTLCache_OverwriteRestartsAge(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	cache := NewTTLCache(60*time.Second, WithClock(clock.Now))

	require.NoError(t, cache.Set(ctx, "k", []byte("v1")))
	clock.Advance(50 * time.Second)
	require.NoError(t, cache.Set(ctx, "k", []byte("v2")))

	// 70s after the first set, 20s after the second.
	clock.Advance(20 * time.Second)
	val, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), val)

	clock.Advance(41 * time.Second)
	_, ok = cache.Get(ctx, "k")
	assert.False(t, ok)
}

func TestTTLCache_MissingKey(t *testing.T) {
	cache := NewTTLCache(time.Minute)
	val, ok := cache.Get(context.Background(), "nope")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestTTLCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	cache := NewTTLCache(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = cache.Set(ctx, "shared", []byte{byte(i)})
				cache.Get(ctx, "shared")
			}
		}(i)
	}
	wg.Wait()

	_, ok := cache.Get(ctx, "shared")
	assert.True(t, ok)
}

func TestNamespacedCache_IsolatesTenants(t *testing.T) {
	ctx := context.Background()
	shared := NewTTLCache(time.Minute)

	a := NewNamespacedCache(shared, "tenant-a")
	b := NewNamespacedCache(shared, "tenant-b")

	require.NoError(t, a.Set(ctx, "coins:list", []byte("a")))
	require.NoError(t, b.Set(ctx, "coins:list", []byte("b")))

	va, ok := a.Get(ctx, "coins:list")
	require.True(t, ok)
	assert.Equal(t, []byte("a"), va)

	vb, ok := b.Get(ctx, "coins:list")
	require.True(t, ok)
	assert.Equal(t, []byte("b"), vb)

	_, ok = shared.Get(ctx, "coins:list")
	assert.False(t, ok)
	assert.Equal(t, 2, shared.Len())
}

func TestNamespacedCache_EmptyNamespaceReturnsInner(t *testing.T) {
	inner := NewTTLCache(time.Minute)
	assert.Same(t, inner, NewNamespacedCache(inner, ""))
}
