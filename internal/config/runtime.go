package config

import "sync/atomic"

// Runtime holds the live config behind an atomic pointer.
// In-flight requests keep whatever snapshot they loaded; new requests see
// the value from the most recent Store.
type Runtime struct {
	ptr atomic.Pointer[Config]
}

// NewRuntime returns a Runtime seeded with initial.
func NewRuntime(initial *Config) *Runtime {
	r := &Runtime{}
	r.ptr.Store(initial)
	return r
}

// Get returns the current snapshot.
func (r *Runtime) Get() *Config {
	return r.ptr.Load()
}

// Store swaps in cfg.
func (r *Runtime) Store(cfg *Config) {
	r.ptr.Store(cfg)
}

// Static wraps a fixed config as a RuntimeConfig.
type Static struct {
	Config *Config
}

// Get returns the wrapped config.
func (s Static) Get() *Config {
	return s.Config
}

var (
	_ RuntimeConfig = (*Runtime)(nil)
	_ RuntimeConfig = Static{}
)
