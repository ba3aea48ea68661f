package di

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"

	"github.com/omarluq/auth-relay/internal/config"
	"github.com/omarluq/auth-relay/internal/logging"
)

// LoggerService wraps the structured logger for DI.
type LoggerService struct {
	Logger *logging.Logger
}

// NewLogger creates the logger from configuration. Security events feed the
// metrics counter, and the level follows config reloads.
func NewLogger(i do.Injector) (*LoggerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	metricsSvc := do.MustInvoke[*MetricsService](i)

	logger, err := logging.NewFromOptions(
		cfgSvc.Get().Logging.Options(),
		logging.WithSecurityHook(metricsSvc.Metrics.SecurityEvent),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	cfgSvc.SetWatcherLogger(logger)
	cfgSvc.OnReload(func(cfg *config.Config) error {
		level := cfg.Logging.ParseLevel()
		if level != logger.Level() {
			logger.SetLevel(level)
			log.Info().Str("level", level.String()).Msg("log level changed")
		}
		return nil
	})

	return &LoggerService{Logger: logger}, nil
}

// Zerolog returns the request-scoped sink shared with the HTTP middleware.
func (l *LoggerService) Zerolog() zerolog.Logger {
	return *l.Logger.Zerolog()
}
