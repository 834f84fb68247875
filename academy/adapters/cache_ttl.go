package adapters

import (
	"context"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/crypto-academy/academy/ports"
)

// TTLCache is an in-memory cache with a single expiration for every entry.
// It has no size bound and no eviction besides expiry; expired entries are
// removed lazily on the next read of their key.
type TTLCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]cacheItem
}

type cacheItem struct {
	value    []byte
	storedAt time.Time
}

// TTLCacheOption customizes a TTLCache.
type TTLCacheOption func(*TTLCache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) TTLCacheOption {
	return func(c *TTLCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTTLCache creates a cache whose entries live for ttl.
func NewTTLCache(ttl time.Duration, opts ...TTLCacheOption) *TTLCache {
	c := &TTLCache{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]cacheItem),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value stored for key while it is younger than the TTL.
func (c *TTLCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		return nil, false
	}

	if c.now().Sub(item.storedAt) >= c.ttl {
		delete(c.items, key)
		return nil, false
	}

	return item.value, true
}

// Set stores value under key, replacing any previous entry and restarting its age.
func (c *TTLCache) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = cacheItem{value: value, storedAt: c.now()}
	return nil
}

// Len reports how many entries are physically held, expired ones included.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Ensure TTLCache implements the Cache interface.
var _ ports.Cache = (*TTLCache)(nil)
