// Package cache provides the byte-value cache used for contract
// prefetching, with in-memory and Redis backends.
package cache

import (
	"context"
	"time"
)

// Cache is a TTL cache keyed by string. A miss is (nil, false, nil);
// errors are reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}
