package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/omarluq/auth-relay/internal/config"
	"github.com/omarluq/auth-relay/internal/di"
	"github.com/omarluq/auth-relay/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the auth-relay server",
	Long: `Start the HTTP server. The config file is watched and reloaded on change;
a file that fails validation is ignored and the previous config stays active.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	loadedEnv, err := loadEnvFile(envFile)
	if err != nil {
		log.Error().Err(err).Msg("failed to load env file")
		return err
	}

	configPath := resolveConfigPath(cfgFile)
	container, err := di.NewContainer(configPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to create DI container")
		return err
	}

	cfgSvc, err := di.Invoke[*di.ConfigService](container)
	if err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("failed to load config")
		return err
	}

	loggerSvc, err := di.Invoke[*di.LoggerService](container)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize logger")
		return err
	}
	installGlobalLogger(loggerSvc, cfgSvc)

	serverSvc, err := di.Invoke[*di.ServerService](container)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize server")
		return shutdownAfter(container, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgSvc.StartWatching(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- serverSvc.Server.ListenAndServe()
	}()

	cfg := cfgSvc.Get()
	log.Info().
		Str("listen", cfg.Server.Listen).
		Str("framework", cfg.Server.GetFramework()).
		Str("auth_path", cfg.Bridge.AuthPath()).
		Str("engine", cfg.Engine.BaseURL).
		Str("env_file", loadedEnv).
		Msg("starting auth-relay")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			return shutdownAfter(container, err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfgSvc.Get().Server.GetShutdownTimeout())
	defer cancel()

	if err := container.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}

// installGlobalLogger points the zerolog globals at the configured sink and
// keeps the global level in step with config reloads.
func installGlobalLogger(loggerSvc *di.LoggerService, cfgSvc *di.ConfigService) {
	sink := loggerSvc.Zerolog()
	log.Logger = sink
	zerolog.DefaultContextLogger = &sink

	zerolog.SetGlobalLevel(requestLogLevel(loggerSvc.Logger.Level()))
	cfgSvc.OnReload(func(cfg *config.Config) error {
		zerolog.SetGlobalLevel(requestLogLevel(cfg.Logging.ParseLevel()))
		return nil
	})
}

// requestLogLevel caps the global zerolog level at error so security events,
// which are written at error level, survive logging.level none.
func requestLogLevel(level logging.Level) zerolog.Level {
	return min(logging.ZerologLevel(level), zerolog.ErrorLevel)
}

func shutdownAfter(container *di.Container, cause error) error {
	if err := container.Shutdown(); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	return cause
}
