package engine_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarluq/auth-relay/internal/engine"
)

func newTestEngine(t *testing.T, handler http.HandlerFunc, opts ...engine.HTTPOption) *engine.HTTPEngine {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	e, err := engine.NewHTTPEngine(srv.URL, opts...)
	require.NoError(t, err)
	return e
}

func TestNewHTTPEngine_RejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := engine.NewHTTPEngine("ftp://engine.local")
	require.Error(t, err)

	_, err = engine.NewHTTPEngine("://bad")
	require.Error(t, err)
}

func TestHTTPEngine_HandleForwards(t *testing.T) {
	t.Parallel()

	var (
		gotPath, gotQuery, gotBody string
		gotForwardedHost           string
		gotForwardedProto          string
		gotCookie                  string
	)

	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotForwardedHost = r.Header.Get("X-Forwarded-Host")
		gotForwardedProto = r.Header.Get("X-Forwarded-Proto")
		gotCookie = r.Header.Get("Cookie")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)

		w.Header().Add("Set-Cookie", "a=1")
		w.Header().Add("Set-Cookie", "b=2")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	resp, err := e.Handle(context.Background(), &engine.Request{
		Method: http.MethodPost,
		URL:    "https://app.example.com/api/auth/sign-in/email?redirect=%2Fhome",
		Header: engine.Header{"cookie": {"sid=1"}, "content-type": {"application/json"}},
		Body:   mo.Some(`{"email":"a@b.c"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/auth/sign-in/email", gotPath)
	assert.Equal(t, "redirect=%2Fhome", gotQuery)
	assert.Equal(t, `{"email":"a@b.c"}`, gotBody)
	assert.Equal(t, "app.example.com", gotForwardedHost)
	assert.Equal(t, "https", gotForwardedProto)
	assert.Equal(t, "sid=1", gotCookie)

	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, []string{"a=1", "b=2"}, resp.Header.Values("set-cookie"))
	assert.Equal(t, mo.Some(`{"ok":true}`), resp.Body)
}

func TestHTTPEngine_HandleKeepsEncodedPath(t *testing.T) {
	t.Parallel()

	var gotRequestURI string
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		gotRequestURI = r.RequestURI
		w.WriteHeader(http.StatusNoContent)
	})

	_, err := e.Handle(context.Background(), &engine.Request{
		Method: http.MethodGet,
		URL:    "http://relay/api/auth/callback/a%2Fb%3Fc?x=1",
		Header: engine.Header{},
	})
	require.NoError(t, err)
	assert.Equal(t, "/api/auth/callback/a%2Fb%3Fc?x=1", gotRequestURI)
}

func TestHTTPEngine_HandleKeepsEncodedPathUnderBasePath(t *testing.T) {
	t.Parallel()

	var gotRequestURI string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestURI = r.RequestURI
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	e, err := engine.NewHTTPEngine(srv.URL + "/engine/")
	require.NoError(t, err)

	_, err = e.Handle(context.Background(), &engine.Request{
		Method: http.MethodGet,
		URL:    "http://relay/api/auth/verify/x%2Fy",
		Header: engine.Header{},
	})
	require.NoError(t, err)
	assert.Equal(t, "/engine/api/auth/verify/x%2Fy", gotRequestURI)
}

func TestHTTPEngine_RejectsOversizedResponse(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), engine.MaxResponseSize+1))
	})

	resp, err := e.Handle(context.Background(), &engine.Request{
		Method: http.MethodGet,
		URL:    "http://relay/api/auth/big",
		Header: engine.Header{},
	})
	require.ErrorIs(t, err, engine.ErrResponseTooLarge)
	assert.Nil(t, resp)
}

func TestHTTPEngine_AcceptsResponseAtLimit(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), engine.MaxResponseSize))
	})

	resp, err := e.Handle(context.Background(), &engine.Request{
		Method: http.MethodGet,
		URL:    "http://relay/api/auth/big",
		Header: engine.Header{},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Body.OrEmpty(), engine.MaxResponseSize)
}

func TestHTTPEngine_DoesNotFollowRedirects(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://provider.example.com/authorize", http.StatusFound)
	})

	resp, err := e.Handle(context.Background(), &engine.Request{
		Method: http.MethodGet,
		URL:    "http://localhost/api/auth/sign-in/social",
		Header: engine.Header{},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "https://provider.example.com/authorize", resp.Header.Get("location"))
}

func TestHTTPEngine_GetSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		wantUser string
		wantNil  bool
		wantErr  bool
	}{
		{"session", http.StatusOK, `{"session":{"id":"s1"},"user":{"id":"u1","role":"admin"}}`, "u1", false, false},
		{"json null", http.StatusOK, `null`, "", true, false},
		{"empty body", http.StatusOK, ``, "", true, false},
		{"no user", http.StatusOK, `{"session":{"id":"s1"}}`, "", true, false},
		{"unauthorized", http.StatusUnauthorized, `{}`, "", true, false},
		{"server error", http.StatusInternalServerError, `oops`, "", true, true},
		{"invalid json", http.StatusOK, `{not json`, "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/auth/get-session", r.URL.Path)
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			session, err := e.GetSession(context.Background(), engine.Header{"authorization": {"Bearer tok"}})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, session)
				return
			}
			require.NotNil(t, session)
			assert.Equal(t, tt.wantUser, session.UserID())
			assert.Equal(t, "s1", session.Session["id"])
		})
	}
}

func TestHTTPEngine_GetSessionStatusError(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := e.GetSession(context.Background(), engine.Header{})

	var statusErr *engine.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Status)
}

func TestHTTPEngine_SignOut(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/sign-out", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true}`))
	}, engine.WithAuthPath("auth/"))

	result, err := e.SignOut(context.Background(), engine.Header{"cookie": {"sid=1"}})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestHTTPEngine_BreakerOpensOnServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	breaker := engine.NewCircuitBreaker("engine", engine.BreakerConfig{FailureThreshold: 2, OpenDurationMS: 60000}, nil)
	e := newTestEngine(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, engine.WithBreaker(breaker))

	req := &engine.Request{Method: http.MethodGet, URL: "http://localhost/api/auth/ok", Header: engine.Header{}}

	for range 2 {
		resp, err := e.Handle(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	}

	_, err := e.Handle(context.Background(), req)
	require.ErrorIs(t, err, engine.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, engine.StateOpen, e.Breaker().State())
}

func TestBreakerConfigDefaults(t *testing.T) {
	t.Parallel()

	var cfg engine.BreakerConfig
	assert.Equal(t, engine.DefaultFailureThreshold, cfg.GetFailureThreshold())
	assert.Equal(t, engine.DefaultHalfOpenProbes, cfg.GetHalfOpenProbes())
	assert.Equal(t, int64(engine.DefaultOpenDurationMS), cfg.GetOpenDuration().Milliseconds())
}

func TestShouldCountAsFailure(t *testing.T) {
	t.Parallel()

	assert.True(t, engine.ShouldCountAsFailure(http.StatusInternalServerError, nil))
	assert.False(t, engine.ShouldCountAsFailure(http.StatusTooManyRequests, nil))
	assert.False(t, engine.ShouldCountAsFailure(http.StatusOK, context.Canceled))
	assert.True(t, engine.ShouldCountAsFailure(http.StatusOK, io.ErrUnexpectedEOF))
}
