package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/omarluq/auth-relay/internal/auth"
	"github.com/omarluq/auth-relay/internal/config"
	"github.com/omarluq/auth-relay/internal/httpx"
)

// NewChiHandler creates the net/http router.
// Routes:
//   - {global_prefix}/api/auth/* - forwarded to the engine by the bridge
//   - GET /health - engine breaker state (no auth)
//   - GET /metrics - Prometheus metrics (no auth)
//   - GET /me, POST /me/sign-out - signed-in user
//   - GET /admin/ping - role admin
//   - GET /admin/ratelimit/stats, GET|DELETE /admin/ratelimit/{id} - admin API key
func NewChiHandler(cfg *config.Config, deps Deps) http.Handler {
	a := newAPI(cfg, deps)
	r := chi.NewRouter()

	// Order: logger, request ID, access log, CORS, bridge.
	r.Use(httpx.LoggerMiddleware(deps.Logger))
	r.Use(httpx.RequestIDMiddleware())
	r.Use(httpx.AccessLogMiddleware())
	if cfg.Bridge.CORSEnabled() {
		r.Use(NewCORS(cfg.Bridge.TrustedOrigins).Handler)
	}
	if !cfg.Bridge.DisableMiddleware {
		r.Use(deps.Bridge.Middleware)
	} else {
		deps.Logger.Info().Msg("bridge middleware disabled, auth mount not served")
	}

	r.Get("/health", a.handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.With(auth.Middleware(a.chain, auth.Protected)).Get("/me", a.handleMe)
	r.With(auth.Middleware(a.chain, auth.Protected)).Post("/me/sign-out", a.handleSignOut)
	r.With(auth.Middleware(a.chain, auth.RequireRoles(AdminRole))).Get("/admin/ping", a.handlePing)

	if a.adminEnabled() {
		r.Route("/admin/ratelimit", func(r chi.Router) {
			r.Use(auth.APIKeyMiddleware(auth.NewAPIKeyAuthenticator(cfg.Server.AdminAPIKey)))
			r.Get("/stats", a.handleLimiterStats)
			r.Get("/{id}", a.handleLimiterInfo)
			r.Delete("/{id}", a.handleLimiterReset)
		})
	}

	return r
}

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status, body := a.health()
	httpx.WriteJSON(w, status, body)
}

func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	body, ok := a.me(r.Context())
	if !ok {
		auth.WriteAccessError(w, auth.ErrUnauthenticated)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, body)
}

func (a *api) handleSignOut(w http.ResponseWriter, r *http.Request) {
	result, err := a.signOut(r)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("sign-out failed")
		writeSignOutError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (a *api) handlePing(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "pong"})
}

func (a *api) handleLimiterStats(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, a.deps.Limiter.Stats())
}

func (a *api) handleLimiterInfo(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, a.limiterInfo(chi.URLParam(r, "id")))
}

func (a *api) handleLimiterReset(w http.ResponseWriter, r *http.Request) {
	a.deps.Limiter.Reset(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}
