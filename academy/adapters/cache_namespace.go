package adapters

import (
	"context"

	"github.com/ZanzyTHEbar/crypto-academy/academy/ports"
)

// NamespacedCache prefixes every key with a tenant namespace so several
// tenants can share one backing cache without reading each other's entries.
type NamespacedCache struct {
	inner     ports.Cache
	namespace string
}

// NewNamespacedCache wraps inner. An empty namespace returns inner unchanged.
func NewNamespacedCache(inner ports.Cache, namespace string) ports.Cache {
	if namespace == "" {
		return inner
	}
	return &NamespacedCache{inner: inner, namespace: namespace}
}

func (c *NamespacedCache) key(k string) string { return c.namespace + "|" + k }

func (c *NamespacedCache) Get(ctx context.Context, key string) ([]byte, bool) {
	return c.inner.Get(ctx, c.key(key))
}

func (c *NamespacedCache) Set(ctx context.Context, key string, value []byte) error {
	return c.inner.Set(ctx, c.key(key), value)
}

var _ ports.Cache = (*NamespacedCache)(nil)
