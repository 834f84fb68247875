package ports

import "context"

// RateLimiter coordinates throughput towards upstream APIs.
type RateLimiter interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
