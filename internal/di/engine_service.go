package di

import (
	"fmt"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/omarluq/auth-relay/internal/cache"
	"github.com/omarluq/auth-relay/internal/engine"
)

// EngineService wraps the engine client, its circuit breaker, and the
// optional session cache in front of it.
type EngineService struct {
	Engine  engine.Engine
	Breaker *engine.CircuitBreaker
	cache   cache.Cache
}

// NewEngine creates the HTTP engine client from the engine section.
func NewEngine(i do.Injector) (*EngineService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)
	metricsSvc := do.MustInvoke[*MetricsService](i)

	cfg := cfgSvc.Get().Engine
	breaker := engine.NewCircuitBreaker("engine", cfg.CircuitBreaker, loggerSvc.Logger)

	opts := []engine.HTTPOption{
		engine.WithBreaker(breaker),
		engine.WithEngineLogger(loggerSvc.Logger),
		engine.WithAuthPath(cfg.AuthPath),
	}
	if timeout := cfg.GetTimeout(); timeout > 0 {
		opts = append(opts, engine.WithHTTPClient(&http.Client{Timeout: timeout}))
	}

	httpEngine, err := engine.NewHTTPEngine(cfg.BaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine client: %w", err)
	}

	svc := &EngineService{Engine: httpEngine, Breaker: httpEngine.Breaker()}
	if !cfg.SessionCache.Enabled {
		return svc, nil
	}

	sessionCache, err := cache.New(cfg.SessionCache, loggerSvc.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	if counters, ok := sessionCache.(*cache.RistrettoCache); ok {
		metricsSvc.Metrics.TrackSessionCache(counters)
	}

	svc.cache = sessionCache
	svc.Engine = cache.NewSessionEngine(httpEngine, sessionCache, cfg.SessionCache.GetTTL(), loggerSvc.Logger)
	return svc, nil
}

// Shutdown implements do.Shutdowner; it releases the session cache.
func (e *EngineService) Shutdown() error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Close()
}
