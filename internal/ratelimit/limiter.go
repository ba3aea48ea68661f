// Package ratelimit provides per-identifier request limiting for auth-relay.
//
// FixedWindowLimiter counts requests per client identifier inside fixed
// windows. The first request from an identifier opens a window; once the
// window has passed, the next request opens a fresh one. A background sweep
// removes expired entries to bound memory, but correctness never depends on
// it: expiry is always checked on access.
//
// Basic usage:
//
//	limiter := ratelimit.NewFixedWindowLimiter(ratelimit.WithLogger(logger))
//	limiter.Start()
//	defer limiter.Shutdown()
//
//	if limiter.IsRateLimited(clientIP, ratelimit.DefaultConfig()) {
//		return ratelimit.ErrRateLimitExceeded
//	}
package ratelimit

import (
	"errors"
	"math"
	"time"
)

// ErrRateLimitExceeded is returned when an identifier has used up its window.
var ErrRateLimitExceeded = errors.New("ratelimit: rate limit exceeded")

// Defaults applied by DefaultConfig and by zero-valued windows.
const (
	DefaultWindow          = 15 * time.Minute
	DefaultMax             = 100
	DefaultCleanupInterval = 5 * time.Minute
)

// Config is the limit applied to a single check. It is passed per call so
// that limits follow configuration reloads.
type Config struct {
	// Window is the fixed window length. Zero or negative means DefaultWindow.
	Window time.Duration
	// Max is the number of requests allowed per window. Zero or negative
	// denies every request.
	Max int
	// Enabled turns limiting on. A disabled config never limits.
	Enabled bool
}

// DefaultConfig returns an enabled config with the default window and max.
func DefaultConfig() Config {
	return Config{Enabled: true, Window: DefaultWindow, Max: DefaultMax}
}

// EffectiveWindow returns Window or DefaultWindow.
func (c Config) EffectiveWindow() time.Duration {
	if c.Window <= 0 {
		return DefaultWindow
	}
	return c.Window
}

// Info describes an identifier's standing in its current window.
type Info struct {
	// ResetAt is when the current window ends. Zero when no window is open.
	ResetAt   time.Time `json:"reset_at"`
	Remaining int       `json:"remaining"`
	Total     int       `json:"total"`
	// Unlimited is set when limiting is disabled.
	Unlimited bool `json:"unlimited"`
}

// RetryAfter returns the time left until ResetAt, or zero.
func (i Info) RetryAfter(now time.Time) time.Duration {
	if i.ResetAt.IsZero() || !i.ResetAt.After(now) {
		return 0
	}
	return i.ResetAt.Sub(now)
}

// Stats summarizes the limiter's entry table.
type Stats struct {
	TotalEntries   int `json:"total_entries"`
	ActiveEntries  int `json:"active_entries"`
	ExpiredEntries int `json:"expired_entries"`
}

func unlimitedInfo() Info {
	return Info{Remaining: math.MaxInt, Total: math.MaxInt, Unlimited: true}
}
