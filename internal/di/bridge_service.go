package di

import (
	"fmt"

	"github.com/samber/do/v2"
	"go.opentelemetry.io/otel"

	"github.com/omarluq/auth-relay/internal/bridge"
)

// BridgeService wraps the request bridge.
type BridgeService struct {
	Bridge *bridge.Bridge
}

// NewBridge creates the bridge over the live config. Spans go to the
// global OpenTelemetry provider.
func NewBridge(i do.Injector) (*BridgeService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)
	metricsSvc := do.MustInvoke[*MetricsService](i)
	limiterSvc := do.MustInvoke[*LimiterService](i)
	engineSvc := do.MustInvoke[*EngineService](i)

	b, err := bridge.New(engineSvc.Engine, cfgSvc,
		bridge.WithLimiter(limiterSvc.Limiter),
		bridge.WithLogger(loggerSvc.Logger),
		bridge.WithMetrics(metricsSvc.Metrics),
		bridge.WithTracerProvider(otel.GetTracerProvider()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bridge: %w", err)
	}

	return &BridgeService{Bridge: b}, nil
}
