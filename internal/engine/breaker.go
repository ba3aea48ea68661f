package engine

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/omarluq/auth-relay/internal/logging"
)

// Circuit breaker defaults.
const (
	DefaultFailureThreshold = 5
	DefaultOpenDurationMS   = 30000
	DefaultHalfOpenProbes   = 3
)

// State is the circuit breaker state.
type State = gobreaker.State

// Circuit breaker states.
const (
	StateClosed   = gobreaker.StateClosed
	StateOpen     = gobreaker.StateOpen
	StateHalfOpen = gobreaker.StateHalfOpen
)

// BreakerConfig controls when calls to a remote engine are short-circuited.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int `yaml:"failure_threshold" toml:"failure_threshold"`
	// OpenDurationMS is how long the circuit stays open before probing.
	OpenDurationMS int `yaml:"open_duration_ms" toml:"open_duration_ms"`
	// HalfOpenProbes is the number of probe calls allowed while half-open.
	HalfOpenProbes int `yaml:"half_open_probes" toml:"half_open_probes"`
}

// GetFailureThreshold returns the threshold or its default.
func (c BreakerConfig) GetFailureThreshold() int {
	if c.FailureThreshold <= 0 {
		return DefaultFailureThreshold
	}
	return c.FailureThreshold
}

// GetOpenDuration returns the open duration or its default.
func (c BreakerConfig) GetOpenDuration() time.Duration {
	if c.OpenDurationMS <= 0 {
		return time.Duration(DefaultOpenDurationMS) * time.Millisecond
	}
	return time.Duration(c.OpenDurationMS) * time.Millisecond
}

// GetHalfOpenProbes returns the probe count or its default.
func (c BreakerConfig) GetHalfOpenProbes() int {
	if c.HalfOpenProbes <= 0 {
		return DefaultHalfOpenProbes
	}
	return c.HalfOpenProbes
}

// CircuitBreaker wraps a gobreaker TwoStepCircuitBreaker around engine calls.
type CircuitBreaker struct {
	cb   *gobreaker.TwoStepCircuitBreaker[struct{}]
	name string
}

// NewCircuitBreaker creates a breaker named after the engine it guards.
func NewCircuitBreaker(name string, cfg BreakerConfig, logger *logging.Logger) *CircuitBreaker {
	if logger == nil {
		logger = logging.Nop()
	}

	failureThreshold := uint32(cfg.GetFailureThreshold()) //nolint:gosec // positive by construction

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.GetHalfOpenProbes()), //nolint:gosec // positive by construction
		Timeout:     cfg.GetOpenDuration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fields := logging.Fields{"engine": name, "from": from.String(), "to": to.String()}
			if to == gobreaker.StateOpen {
				logger.Warn("circuit breaker state change", fields)
				return
			}
			logger.Info("circuit breaker state change", fields)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &CircuitBreaker{
		cb:   gobreaker.NewTwoStepCircuitBreaker[struct{}](settings),
		name: name,
	}
}

// Allow reserves a call. The returned done func must be called with the outcome.
func (c *CircuitBreaker) Allow() (done func(err error), err error) {
	d, err := c.cb.Allow()
	if err != nil {
		return nil, ErrCircuitOpen
	}
	return d, nil
}

// State returns the current breaker state.
func (c *CircuitBreaker) State() State {
	return c.cb.State()
}

// Name returns the breaker name.
func (c *CircuitBreaker) Name() string {
	return c.name
}

// ShouldCountAsFailure reports whether an engine outcome should trip the breaker.
// Client errors and cancellations are the caller's fault, not the engine's.
func ShouldCountAsFailure(statusCode int, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	return statusCode >= 500
}
