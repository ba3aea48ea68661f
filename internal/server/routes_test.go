package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarluq/auth-relay/internal/bridge"
	"github.com/omarluq/auth-relay/internal/config"
	"github.com/omarluq/auth-relay/internal/engine"
	"github.com/omarluq/auth-relay/internal/httpx"
	"github.com/omarluq/auth-relay/internal/metrics"
	"github.com/omarluq/auth-relay/internal/ratelimit"
	"github.com/omarluq/auth-relay/internal/server"
)

const adminKey = "operator-key-0123456789"

var frameworks = []string{config.FrameworkHTTP, config.FrameworkGin}

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeEngine answers every auth call and reports a session for cookie "sid=<user>".
type fakeEngine struct {
	handled  atomic.Int32
	signOuts atomic.Int32
}

var users = map[string]map[string]any{
	"member": {"id": "u-member", "roles": []string{"member"}},
	"admin":  {"id": "u-admin", "roles": []string{"admin"}},
}

func (f *fakeEngine) engine() engine.Engine {
	return engine.Funcs{
		HandleFunc: func(_ context.Context, req *engine.Request) (*engine.Response, error) {
			f.handled.Add(1)
			resp := engine.NewResponse(http.StatusOK, `{"path":"`+req.URL+`"}`)
			resp.Header.Set("content-type", "application/json")
			return resp, nil
		},
		GetSessionFunc: func(_ context.Context, h engine.Header) (*engine.Session, error) {
			user, ok := users[strings.TrimPrefix(h.Get("cookie"), "sid=")]
			if !ok {
				return nil, nil
			}
			return &engine.Session{Session: map[string]any{"id": "s-" + user["id"].(string)}, User: user}, nil
		},
		SignOutFunc: func(context.Context, engine.Header) (engine.SignOutResult, error) {
			f.signOuts.Add(1)
			return engine.SignOutResult{Success: true}, nil
		},
	}
}

type fixture struct {
	handler http.Handler
	engine  *fakeEngine
	limiter *ratelimit.FixedWindowLimiter
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, framework string, mutate ...func(*config.Config, *server.Deps)) *fixture {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Listen: "127.0.0.1:0", Framework: framework, AdminAPIKey: adminKey},
		Engine: config.EngineConfig{BaseURL: "http://127.0.0.1:3000"},
	}
	f := &fixture{
		engine:  &fakeEngine{},
		limiter: ratelimit.NewFixedWindowLimiter(),
		metrics: metrics.New(),
	}
	deps := server.Deps{
		Engine:  f.engine.engine(),
		Limiter: f.limiter,
		Metrics: f.metrics,
		Logger:  zerolog.Nop(),
	}
	for _, m := range mutate {
		m(cfg, &deps)
	}

	b, err := bridge.New(deps.Engine, config.Static{Config: cfg}, bridge.WithLimiter(f.limiter), bridge.WithMetrics(f.metrics))
	require.NoError(t, err)
	deps.Bridge = b

	f.handler, err = server.NewHandler(cfg, deps)
	require.NoError(t, err)
	return f
}

func (f *fixture) do(method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header     map[string]string
		name       string
		method     string
		target     string
		wantBody   string
		wantStatus int
	}{
		{name: "auth mount", method: http.MethodGet, target: "/api/auth/get-session", wantStatus: http.StatusOK, wantBody: `{"path":"http://example.com/api/auth/get-session"}`},
		{name: "auth mount post", method: http.MethodPost, target: "/api/auth/sign-out", wantStatus: http.StatusOK},
		{name: "health", method: http.MethodGet, target: "/health", wantStatus: http.StatusOK, wantBody: `{"status":"ok"}`},
		{name: "unknown path", method: http.MethodGet, target: "/nope", wantStatus: http.StatusNotFound},
		{name: "me anonymous", method: http.MethodGet, target: "/me", wantStatus: http.StatusUnauthorized},
		{
			name: "me", method: http.MethodGet, target: "/me", header: map[string]string{"Cookie": "sid=member"},
			wantStatus: http.StatusOK, wantBody: `{"user":{"id":"u-member","roles":["member"]},"session":{"id":"s-u-member"}}`,
		},
		{name: "sign out", method: http.MethodPost, target: "/me/sign-out", header: map[string]string{"Cookie": "sid=member"}, wantStatus: http.StatusOK, wantBody: `{"success":true}`},
		{name: "ping member", method: http.MethodGet, target: "/admin/ping", header: map[string]string{"Cookie": "sid=member"}, wantStatus: http.StatusForbidden},
		{name: "ping admin", method: http.MethodGet, target: "/admin/ping", header: map[string]string{"Cookie": "sid=admin"}, wantStatus: http.StatusOK, wantBody: `{"message":"pong"}`},
		{name: "stats without key", method: http.MethodGet, target: "/admin/ratelimit/stats", wantStatus: http.StatusUnauthorized},
		{name: "stats session is not enough", method: http.MethodGet, target: "/admin/ratelimit/stats", header: map[string]string{"Cookie": "sid=admin"}, wantStatus: http.StatusUnauthorized},
		{
			name: "stats", method: http.MethodGet, target: "/admin/ratelimit/stats", header: map[string]string{"X-API-Key": adminKey},
			wantStatus: http.StatusOK, wantBody: `{"total_entries":0,"active_entries":0,"expired_entries":0}`,
		},
	}

	for _, framework := range frameworks {
		for _, tt := range tests {
			t.Run(framework+"/"+tt.name, func(t *testing.T) {
				t.Parallel()
				f := newFixture(t, framework)

				rec := f.do(tt.method, tt.target, tt.header)

				assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
				if tt.wantBody != "" {
					assert.JSONEq(t, tt.wantBody, rec.Body.String())
				}
				assert.NotEmpty(t, rec.Header().Get(httpx.HeaderRequestID))
			})
		}
	}
}

func TestRoutes_SignOutCallsEngine(t *testing.T) {
	t.Parallel()

	for _, framework := range frameworks {
		f := newFixture(t, framework)

		f.do(http.MethodPost, "/me/sign-out", nil)
		assert.Zero(t, f.engine.signOuts.Load(), framework)

		f.do(http.MethodPost, "/me/sign-out", map[string]string{"Cookie": "sid=admin"})
		assert.Equal(t, int32(1), f.engine.signOuts.Load(), framework)
	}
}

func TestRoutes_SignOutFailure(t *testing.T) {
	t.Parallel()

	for _, framework := range frameworks {
		f := newFixture(t, framework, func(_ *config.Config, d *server.Deps) {
			inner := d.Engine
			d.Engine = engine.Funcs{
				HandleFunc:     inner.Handle,
				GetSessionFunc: inner.GetSession,
				SignOutFunc: func(context.Context, engine.Header) (engine.SignOutResult, error) {
					return engine.SignOutResult{}, engine.ErrCircuitOpen
				},
			}
		})

		rec := f.do(http.MethodPost, "/me/sign-out", map[string]string{"Cookie": "sid=member"})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, framework)
	}
}

func TestRoutes_RateLimitAdmin(t *testing.T) {
	t.Parallel()

	key := map[string]string{"X-API-Key": adminKey}
	caller := map[string]string{"X-Forwarded-For": "203.0.113.7"}

	for _, framework := range frameworks {
		t.Run(framework, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, framework)

			require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/auth/get-session", caller).Code)
			require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/auth/get-session", caller).Code)

			var info ratelimit.Info
			rec := f.do(http.MethodGet, "/admin/ratelimit/203.0.113.7", key)
			require.Equal(t, http.StatusOK, rec.Code)
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
			assert.Equal(t, ratelimit.DefaultMax-2, info.Remaining)
			assert.Equal(t, ratelimit.DefaultMax, info.Total)

			var stats ratelimit.Stats
			rec = f.do(http.MethodGet, "/admin/ratelimit/stats", key)
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
			assert.Equal(t, 1, stats.ActiveEntries)

			assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/admin/ratelimit/203.0.113.7", key).Code)
			assert.Equal(t, 0, f.limiter.Stats().TotalEntries)
		})
	}
}

func TestRoutes_AdminDisabledWithoutKey(t *testing.T) {
	t.Parallel()

	for _, framework := range frameworks {
		f := newFixture(t, framework, func(c *config.Config, _ *server.Deps) {
			c.Server.AdminAPIKey = ""
		})
		rec := f.do(http.MethodGet, "/admin/ratelimit/stats", map[string]string{"X-API-Key": adminKey})
		assert.Equal(t, http.StatusNotFound, rec.Code, framework)
	}
}

func TestRoutes_DisableMiddleware(t *testing.T) {
	t.Parallel()

	for _, framework := range frameworks {
		f := newFixture(t, framework, func(c *config.Config, _ *server.Deps) {
			c.Bridge.DisableMiddleware = true
		})

		rec := f.do(http.MethodGet, "/api/auth/get-session", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, framework)
		assert.Zero(t, f.engine.handled.Load(), framework)
	}
}

func TestRoutes_GlobalPrefix(t *testing.T) {
	t.Parallel()

	for _, framework := range frameworks {
		f := newFixture(t, framework, func(c *config.Config, _ *server.Deps) {
			c.Bridge.GlobalPrefix = "v1"
		})

		assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/v1/api/auth/get-session", nil).Code, framework)
		assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/auth/get-session", nil).Code, framework)
	}
}

func TestRoutes_TrustedOriginsCORS(t *testing.T) {
	t.Parallel()

	const origin = "https://app.example.com"
	preflight := map[string]string{
		"Origin":                        origin,
		"Access-Control-Request-Method": http.MethodPost,
	}

	for _, framework := range frameworks {
		t.Run(framework, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, framework, func(c *config.Config, _ *server.Deps) {
				c.Bridge.TrustedOrigins = []string{origin}
			})
			rec := f.do(http.MethodOptions, "/api/auth/sign-in/email", preflight)
			assert.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

			disabled := newFixture(t, framework, func(c *config.Config, _ *server.Deps) {
				c.Bridge.TrustedOrigins = []string{origin}
				c.Bridge.DisableTrustedOriginsCors = true
			})
			rec = disabled.do(http.MethodOptions, "/api/auth/sign-in/email", preflight)
			assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestRoutes_Metrics(t *testing.T) {
	t.Parallel()

	for _, framework := range frameworks {
		f := newFixture(t, framework)
		f.do(http.MethodGet, "/api/auth/get-session", nil)

		rec := f.do(http.MethodGet, "/metrics", nil)
		assert.Equal(t, http.StatusOK, rec.Code, framework)
		assert.Contains(t, rec.Body.String(), `auth_relay_bridge_requests_total{outcome="dispatched"} 1`, framework)
	}
}

func TestRoutes_HealthReportsOpenBreaker(t *testing.T) {
	t.Parallel()

	for _, framework := range frameworks {
		breaker := engine.NewCircuitBreaker("engine", engine.BreakerConfig{FailureThreshold: 1}, nil)
		done, err := breaker.Allow()
		require.NoError(t, err)
		done(errors.New("engine unreachable"))
		require.Equal(t, engine.StateOpen, breaker.State())

		f := newFixture(t, framework, func(_ *config.Config, d *server.Deps) {
			d.Breaker = breaker
		})

		rec := f.do(http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, framework)
		assert.JSONEq(t, `{"status":"degraded","engine":"open"}`, rec.Body.String(), framework)
	}
}

func TestNewHandler_RequiresBridge(t *testing.T) {
	t.Parallel()

	_, err := server.NewHandler(&config.Config{}, server.Deps{})
	require.ErrorIs(t, err, server.ErrNoBridge)
}
