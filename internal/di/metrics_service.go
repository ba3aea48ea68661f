package di

import (
	"github.com/samber/do/v2"

	"github.com/omarluq/auth-relay/internal/metrics"
)

// MetricsService wraps the Prometheus registry and instruments.
type MetricsService struct {
	Metrics *metrics.Metrics
}

// NewMetrics creates a fresh registry.
func NewMetrics(_ do.Injector) (*MetricsService, error) {
	return &MetricsService{Metrics: metrics.New()}, nil
}
