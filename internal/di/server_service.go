package di

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/omarluq/auth-relay/internal/server"
)

// ServerService wraps the HTTP server.
type ServerService struct {
	Server          *server.Server
	shutdownTimeout time.Duration
}

// NewHTTPServer creates the HTTP server.
func NewHTTPServer(i do.Injector) (*ServerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	handlerSvc := do.MustInvoke[*HandlerService](i)

	cfg := cfgSvc.Get()
	srv := server.NewServer(cfg.Server.Listen, handlerSvc.Handler, cfg.Server.EnableHTTP2)

	return &ServerService{Server: srv, shutdownTimeout: cfg.Server.GetShutdownTimeout()}, nil
}

// Shutdown implements do.Shutdowner for graceful server shutdown.
func (s *ServerService) Shutdown() error {
	if s.Server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.Server.Shutdown(ctx)
}
