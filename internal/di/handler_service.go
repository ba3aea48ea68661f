package di

import (
	"fmt"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/omarluq/auth-relay/internal/server"
)

// HandlerService wraps the HTTP handler.
type HandlerService struct {
	Handler http.Handler
}

// NewHandler builds the router for the configured framework.
func NewHandler(i do.Injector) (*HandlerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)
	metricsSvc := do.MustInvoke[*MetricsService](i)
	limiterSvc := do.MustInvoke[*LimiterService](i)
	engineSvc := do.MustInvoke[*EngineService](i)
	bridgeSvc := do.MustInvoke[*BridgeService](i)

	handler, err := server.NewHandler(cfgSvc.Get(), server.Deps{
		Bridge:  bridgeSvc.Bridge,
		Engine:  engineSvc.Engine,
		Limiter: limiterSvc.Limiter,
		Metrics: metricsSvc.Metrics,
		Breaker: engineSvc.Breaker,
		Logger:  loggerSvc.Zerolog(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup handler: %w", err)
	}

	return &HandlerService{Handler: handler}, nil
}
