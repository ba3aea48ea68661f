package di

import (
	"github.com/samber/do/v2"

	"github.com/omarluq/auth-relay/internal/ratelimit"
)

// LimiterService owns the rate limiter and its sweep goroutine.
type LimiterService struct {
	Limiter *ratelimit.FixedWindowLimiter
}

// NewLimiter creates and starts the limiter. The sweep interval comes from
// RATE_LIMITER_CLEANUP_INTERVAL_MS.
func NewLimiter(i do.Injector) (*LimiterService, error) {
	loggerSvc := do.MustInvoke[*LoggerService](i)
	metricsSvc := do.MustInvoke[*MetricsService](i)

	limiter := ratelimit.NewFixedWindowLimiter(
		ratelimit.WithLogger(loggerSvc.Logger),
		ratelimit.WithCleanupInterval(ratelimit.CleanupIntervalFromEnv()),
	)
	limiter.Start()

	metricsSvc.Metrics.TrackLimiter(func() int {
		return limiter.Stats().ActiveEntries
	})

	return &LimiterService{Limiter: limiter}, nil
}

// Shutdown implements do.Shutdowner; it stops the sweep.
func (l *LimiterService) Shutdown() error {
	l.Limiter.Shutdown()
	return nil
}
