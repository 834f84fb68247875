package adapters

import (
	"context"

	"github.com/ZanzyTHEbar/crypto-academy/academy/ports"
)

// NoopCache never stores anything; every lookup misses.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (NoopCache) Set(context.Context, string, []byte) error  { return nil }

// NoopRateLimiter admits every request immediately.
type NoopRateLimiter struct{}

func (NoopRateLimiter) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

// NoopTracer discards spans and events.
type NoopTracer struct{}

func (NoopTracer) StartSpan(ctx context.Context, _ string, _ map[string]any) (context.Context, func(err error)) {
	return ctx, func(error) {}
}

func (NoopTracer) Event(context.Context, string, map[string]any) {}

var (
	_ ports.Cache       = NoopCache{}
	_ ports.RateLimiter = NoopRateLimiter{}
	_ ports.Tracer      = NoopTracer{}
)
