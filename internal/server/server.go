// Package server assembles the auth-relay HTTP surface: the bridge at the
// auth mount, the session-protected demo routes, and the operator endpoints.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Server wraps http.Server with auth-relay timeouts.
type Server struct {
	httpServer *http.Server
	addr       string
}

// NewServer creates a Server for handler on addr.
// Timeouts:
//   - ReadHeaderTimeout: 5s
//   - ReadTimeout: 10s
//   - WriteTimeout: 60s, above the default engine request timeout
//   - IdleTimeout: 120s
//
// If enableHTTP2 is true, cleartext HTTP/2 (h2c) is accepted as well.
func NewServer(addr string, handler http.Handler, enableHTTP2 bool) *Server {
	finalHandler := handler
	if enableHTTP2 {
		finalHandler = h2c.NewHandler(handler, &http2.Server{})
	}

	return &Server{
		addr: addr,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           finalHandler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ListenAndServe starts the server (blocks).
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on l (blocks).
func (s *Server) Serve(l net.Listener) error {
	return s.httpServer.Serve(l)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
