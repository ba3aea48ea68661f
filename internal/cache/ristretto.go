package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/omarluq/auth-relay/internal/logging"
)

// RistrettoCache implements Cache on Ristretto.
type RistrettoCache struct {
	cache  *ristretto.Cache[string, []byte]
	logger *logging.Logger
	closed atomic.Bool
	mu     sync.RWMutex
}

var _ Cache = (*RistrettoCache)(nil)

// NewRistretto creates a cache holding at most maxCost bytes.
func NewRistretto(numCounters, maxCost int64, logger *logging.Logger) (*RistrettoCache, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		logger.Error("failed to create session cache", err, nil)
		return nil, err
	}

	logger.Info("session cache created", logging.Fields{
		"num_counters": numCounters,
		"max_cost":     maxCost,
	})

	return &RistrettoCache{cache: c, logger: logger}, nil
}

// Get returns a copy of the cached value.
func (r *RistrettoCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed.Load() {
		return nil, ErrClosed
	}

	value, found := r.cache.Get(key)
	if !found {
		return nil, ErrNotFound
	}

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

// SetWithTTL stores a copy of value. The write is applied before returning
// so an immediate Get sees it, unless the admission policy rejects it.
func (r *RistrettoCache) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed.Load() {
		return ErrClosed
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	// Cost is the byte length of the value.
	if r.cache.SetWithTTL(key, valueCopy, int64(len(value)), ttl) {
		r.cache.Wait()
	}
	return nil
}

// Delete removes key.
func (r *RistrettoCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed.Load() {
		return ErrClosed
	}

	r.cache.Del(key)
	return nil
}

// Hits returns the number of lookups that found a value.
func (r *RistrettoCache) Hits() uint64 {
	return r.cache.Metrics.Hits()
}

// Misses returns the number of lookups that found nothing.
func (r *RistrettoCache) Misses() uint64 {
	return r.cache.Metrics.Misses()
}

// Close waits for pending writes and releases the cache.
func (r *RistrettoCache) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Swap(true) {
		return nil
	}

	r.cache.Wait()
	r.cache.Close()
	r.logger.Info("session cache closed", nil)
	return nil
}
