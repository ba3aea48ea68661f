package ratelimit

import (
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/omarluq/auth-relay/internal/logging"
)

// CleanupIntervalEnv overrides the sweep interval, in milliseconds.
const CleanupIntervalEnv = "RATE_LIMITER_CLEANUP_INTERVAL_MS"

const (
	maxIdentifierLength = 100
	unknownIdentifier   = "unknown"
)

var identifierDisallowed = regexp.MustCompile(`[^a-zA-Z0-9.:_-]`)

type entry struct {
	resetAt time.Time
	count   int
}

// FixedWindowLimiter is an in-memory fixed-window limiter keyed by client
// identifier. All methods are safe for concurrent use.
type FixedWindowLimiter struct {
	entries  map[string]*entry
	now      func() time.Time
	logger   *logging.Logger
	stop     chan struct{}
	done     chan struct{}
	interval time.Duration
	mu       sync.Mutex
	running  bool
}

// Option configures a FixedWindowLimiter.
type Option func(*FixedWindowLimiter)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(l *FixedWindowLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *FixedWindowLimiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithCleanupInterval sets how often expired entries are swept.
// Non-positive values keep the default.
func WithCleanupInterval(d time.Duration) Option {
	return func(l *FixedWindowLimiter) {
		if d > 0 {
			l.interval = d
		}
	}
}

// NewFixedWindowLimiter creates a limiter. The sweep is not started until Start.
func NewFixedWindowLimiter(opts ...Option) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		entries:  make(map[string]*entry),
		now:      time.Now,
		logger:   logging.Nop(),
		interval: DefaultCleanupInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CleanupIntervalFromEnv reads CleanupIntervalEnv. Missing, malformed or
// non-positive values yield DefaultCleanupInterval.
func CleanupIntervalFromEnv() time.Duration {
	raw := os.Getenv(CleanupIntervalEnv)
	if raw == "" {
		return DefaultCleanupInterval
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		return DefaultCleanupInterval
	}
	return time.Duration(ms) * time.Millisecond
}

// SanitizeIdentifier strips everything outside [A-Za-z0-9.:_-], truncates to
// 100 characters and maps an empty result to "unknown".
func SanitizeIdentifier(identifier string) string {
	clean := identifierDisallowed.ReplaceAllString(identifier, "")
	if len(clean) > maxIdentifierLength {
		clean = clean[:maxIdentifierLength]
	}
	if clean == "" {
		return unknownIdentifier
	}
	return clean
}

// IsRateLimited records a request from identifier and reports whether it
// exceeds cfg. A disabled config never limits; a non-positive max always does.
func (l *FixedWindowLimiter) IsRateLimited(identifier string, cfg Config) bool {
	if !cfg.Enabled {
		return false
	}

	key := SanitizeIdentifier(identifier)
	if cfg.Max <= 0 {
		l.logger.Warn("Rate limit max is not positive, denying request", logging.Fields{"identifier": key})
		return true
	}

	window := cfg.EffectiveWindow()
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || now.After(e.resetAt) {
		l.entries[key] = &entry{count: 1, resetAt: now.Add(window)}
		return false
	}

	e.count++
	if e.count > cfg.Max {
		l.logger.Warn("Rate limit exceeded", logging.Fields{
			"identifier":  key,
			"count":       e.count,
			"maxRequests": cfg.Max,
			"windowMs":    window.Milliseconds(),
		})
		return true
	}
	return false
}

// Info reports identifier's standing without recording a request.
func (l *FixedWindowLimiter) Info(identifier string, cfg Config) Info {
	if !cfg.Enabled {
		return unlimitedInfo()
	}
	if cfg.Max <= 0 {
		return Info{}
	}

	key := SanitizeIdentifier(identifier)
	now := l.now()

	l.mu.Lock()
	e, ok := l.entries[key]
	var snapshot entry
	if ok {
		snapshot = *e
	}
	l.mu.Unlock()

	if !ok || now.After(snapshot.resetAt) {
		return Info{Remaining: cfg.Max, Total: cfg.Max}
	}

	return Info{
		Remaining: max(0, cfg.Max-snapshot.count),
		ResetAt:   snapshot.resetAt,
		Total:     cfg.Max,
	}
}

// Reset forgets identifier's window.
func (l *FixedWindowLimiter) Reset(identifier string) {
	key := SanitizeIdentifier(identifier)

	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()

	l.logger.Info("Rate limit reset", logging.Fields{"identifier": key})
}

// Stats counts active and expired entries.
func (l *FixedWindowLimiter) Stats() Stats {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{TotalEntries: len(l.entries)}
	for _, e := range l.entries {
		if now.After(e.resetAt) {
			stats.ExpiredEntries++
		} else {
			stats.ActiveEntries++
		}
	}
	return stats
}

// Start launches the background sweep. Calling it again is a no-op.
func (l *FixedWindowLimiter) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return
	}
	l.running = true
	l.stop = make(chan struct{})
	l.done = make(chan struct{})

	go l.sweep(l.stop, l.done, l.interval)
}

// Shutdown stops the sweep and drops every entry. It is safe to call more
// than once and without a prior Start.
func (l *FixedWindowLimiter) Shutdown() {
	l.mu.Lock()
	var done chan struct{}
	if l.running {
		close(l.stop)
		done = l.done
		l.running = false
	}
	clear(l.entries)
	l.mu.Unlock()

	if done != nil {
		<-done
	}

	l.logger.Info("Rate limiter shutdown completed", nil)
}

func (l *FixedWindowLimiter) sweep(stop <-chan struct{}, done chan<- struct{}, interval time.Duration) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

// cleanup deletes expired entries and returns how many were removed.
func (l *FixedWindowLimiter) cleanup() int {
	now := l.now()

	l.mu.Lock()
	removed := 0
	for key, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, key)
			removed++
		}
	}
	remaining := len(l.entries)
	l.mu.Unlock()

	if removed > 0 {
		l.logger.Debug("Rate limiter cleanup completed", logging.Fields{
			"cleanedEntries":   removed,
			"remainingEntries": remaining,
		})
	}
	return removed
}
