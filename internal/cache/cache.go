// Package cache provides a small key-value cache abstraction used for
// progress snapshots. Backed by Redis in production and an in-memory map
// in tests or when no Redis address is configured.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is not present in the cache.
var ErrCacheMiss = errors.New("cache: key not found")

// Cache defines the operations the application needs from a cache backend.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
