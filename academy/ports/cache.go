package ports

import "context"

// Cache memoizes serialized responses by request signature.
// A miss and an expired entry look the same to the caller.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool)
	Set(ctx context.Context, key string, value []byte) error
}
