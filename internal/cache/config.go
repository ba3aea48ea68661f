package cache

import (
	"time"

	"github.com/omarluq/auth-relay/internal/logging"
)

// Defaults for an enabled session cache.
const (
	DefaultTTL         = 10 * time.Second
	DefaultMaxCost     = 16 << 20
	DefaultNumCounters = 100_000
)

// Config is the engine.session_cache section.
type Config struct {
	// Enabled turns the cache on. Off by default so sign-outs made outside
	// the relay are seen immediately.
	Enabled bool `yaml:"enabled" toml:"enabled"`
	// TTLMS is how long a session lookup is reused. Default 10000.
	TTLMS int `yaml:"ttl_ms" toml:"ttl_ms"`
	// MaxCost bounds the bytes held. Default 16 MiB.
	MaxCost int64 `yaml:"max_cost" toml:"max_cost"`
	// NumCounters sizes Ristretto's admission counters; about 10x the
	// expected number of live sessions.
	NumCounters int64 `yaml:"num_counters" toml:"num_counters"`
}

// GetTTL returns the entry lifetime.
func (c Config) GetTTL() time.Duration {
	if c.TTLMS <= 0 {
		return DefaultTTL
	}
	return time.Duration(c.TTLMS) * time.Millisecond
}

// GetMaxCost returns MaxCost or DefaultMaxCost.
func (c Config) GetMaxCost() int64 {
	if c.MaxCost <= 0 {
		return DefaultMaxCost
	}
	return c.MaxCost
}

// GetNumCounters returns NumCounters or DefaultNumCounters.
func (c Config) GetNumCounters() int64 {
	if c.NumCounters <= 0 {
		return DefaultNumCounters
	}
	return c.NumCounters
}

// New returns a Ristretto cache when enabled and a noop cache otherwise.
func New(cfg Config, logger *logging.Logger) (Cache, error) {
	if !cfg.Enabled {
		return NewNoop(), nil
	}
	return NewRistretto(cfg.GetNumCounters(), cfg.GetMaxCost(), logger)
}
