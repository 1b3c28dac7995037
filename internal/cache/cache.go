// Package cache provides the small key/value store used for read caching and
// request rate limiting. The in-process MemoryStore serves single instances;
// RedisStore shares state between replicas.
package cache

import (
	"context"
	"time"
)

// Store is a byte-oriented cache with expiring keys.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// IncrWithExpire increments the counter at key and starts its expiry
	// window when the counter is created.
	IncrWithExpire(ctx context.Context, key string, window time.Duration) (int64, error)
	Ping(ctx context.Context) error
}
