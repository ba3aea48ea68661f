// Package cache keeps recent engine session lookups so that protected routes
// do not call the engine on every request.
//
// Two backends are provided:
//   - Ristretto: local in-memory cache with TTLs
//   - Noop: used when the session cache is disabled
//
// All implementations are safe for concurrent use.
package cache

import (
	"context"
	"errors"
	"time"
)

// Standard errors for cache operations.
var (
	// ErrNotFound is returned when a key does not exist in the cache.
	ErrNotFound = errors.New("cache: key not found")

	// ErrClosed is returned when operations are attempted on a closed cache.
	ErrClosed = errors.New("cache: cache is closed")
)

// Cache defines the interface for cache operations.
type Cache interface {
	// Get returns ErrNotFound on a miss and ErrClosed after Close.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetWithTTL stores value until ttl elapses.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources. Close is idempotent.
	Close() error
}
