package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/omarluq/auth-relay/internal/auth"
	"github.com/omarluq/auth-relay/internal/bridge"
	"github.com/omarluq/auth-relay/internal/config"
	"github.com/omarluq/auth-relay/internal/engine"
	"github.com/omarluq/auth-relay/internal/httpx"
	"github.com/omarluq/auth-relay/internal/metrics"
	"github.com/omarluq/auth-relay/internal/ratelimit"
)

// AdminRole is the role /admin/ping requires.
const AdminRole = "admin"

// ErrNoBridge is returned by NewHandler when Deps.Bridge is unset.
var ErrNoBridge = errors.New("server: bridge is required")

// AdminLimiter is the limiter surface the operator endpoints use.
type AdminLimiter interface {
	Info(identifier string, cfg ratelimit.Config) ratelimit.Info
	Reset(identifier string)
	Stats() ratelimit.Stats
}

// Deps are the components the routes are assembled from. Limiter, Metrics
// and Breaker are optional; their endpoints are omitted or degrade when unset.
type Deps struct {
	Bridge  *bridge.Bridge
	Engine  engine.Engine
	Limiter AdminLimiter
	Metrics *metrics.Metrics
	Breaker *engine.CircuitBreaker
	Logger  zerolog.Logger
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status string `json:"status"`
	Engine string `json:"engine,omitempty"`
}

// MeResponse is the /me body.
type MeResponse struct {
	User    map[string]any `json:"user"`
	Session map[string]any `json:"session"`
}

// api holds the framework-independent route logic. Router-level settings
// (CORS, disable_middleware, admin key) are read once at construction.
type api struct {
	cfg   *config.Config
	chain *auth.Chain
	deps  Deps
}

func newAPI(cfg *config.Config, deps Deps) *api {
	return &api{cfg: cfg, chain: auth.DefaultChain(deps.Engine, nil), deps: deps}
}

// NewHandler builds the router for cfg.Server.Framework.
func NewHandler(cfg *config.Config, deps Deps) (http.Handler, error) {
	if deps.Bridge == nil {
		return nil, ErrNoBridge
	}
	if deps.Engine == nil {
		return nil, bridge.ErrNoEngine
	}

	if cfg.Server.GetFramework() == config.FrameworkGin {
		return NewGinHandler(cfg, deps), nil
	}
	return NewChiHandler(cfg, deps), nil
}

// health reports 503 while the engine breaker is open.
func (a *api) health() (int, HealthResponse) {
	if a.deps.Breaker == nil {
		return http.StatusOK, HealthResponse{Status: "ok"}
	}

	state := a.deps.Breaker.State()
	if state == engine.StateOpen {
		return http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Engine: state.String()}
	}
	return http.StatusOK, HealthResponse{Status: "ok", Engine: state.String()}
}

// rateLimitConfig follows reloads through the bridge's runtime config.
func (a *api) rateLimitConfig() ratelimit.Config {
	return a.deps.Bridge.Config().Bridge.RateLimit()
}

func (a *api) limiterInfo(identifier string) ratelimit.Info {
	return a.deps.Limiter.Info(identifier, a.rateLimitConfig())
}

func (a *api) me(ctx context.Context) (MeResponse, bool) {
	sess, ok := auth.SessionFromContext(ctx)
	if !ok {
		return MeResponse{}, false
	}
	return MeResponse{User: sess.User, Session: sess.Session}, true
}

func (a *api) signOut(r *http.Request) (engine.SignOutResult, error) {
	return a.deps.Engine.SignOut(r.Context(), auth.RequestHeader(r))
}

func writeSignOutError(w http.ResponseWriter, err error) {
	httpx.WriteError(w, bridge.StatusFor(err), httpx.TypeAPI, "Sign-out failed")
}

func (a *api) adminEnabled() bool {
	return a.cfg.Server.AdminAPIKey != "" && a.deps.Limiter != nil
}
