package engine_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarluq/auth-relay/internal/engine"
)

func TestHeader_CaseInsensitive(t *testing.T) {
	t.Parallel()

	h := engine.HeaderFrom(http.Header{
		"Content-Type": {"application/json"},
		"X-Multi":      {"a", "b"},
	})

	assert.Equal(t, "application/json", h.Get("CONTENT-TYPE"))
	assert.Equal(t, []string{"a", "b"}, h.Values("x-multi"))

	h.Set("X-New", "1")
	h.Add("x-new", "2")
	assert.Equal(t, []string{"1", "2"}, h["x-new"])

	clone := h.Clone()
	clone.Del("X-New")
	assert.Empty(t, clone.Get("x-new"))
	assert.Equal(t, "1", h.Get("x-new"), "clone must not share storage")

	out := h.HTTP()
	assert.Equal(t, "application/json", out.Get("Content-Type"))
	assert.Equal(t, []string{"1", "2"}, out["X-New"])
}

func TestSession_Roles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		session *engine.Session
		want    []string
	}{
		{"nil session", nil, nil},
		{"no user", &engine.Session{Session: map[string]any{"id": "s"}}, nil},
		{"roles list", &engine.Session{User: map[string]any{"roles": []any{"admin", "", 3, "editor"}}}, []string{"admin", "editor"}},
		{"typed roles", &engine.Session{User: map[string]any{"roles": []string{"viewer"}}}, []string{"viewer"}},
		{"role string", &engine.Session{User: map[string]any{"role": "admin, support"}}, []string{"admin", "support"}},
		{"no roles", &engine.Session{User: map[string]any{"id": "u1"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.session.Roles())
		})
	}
}

func TestSession_Authenticated(t *testing.T) {
	t.Parallel()

	var missing *engine.Session
	assert.False(t, missing.Authenticated())
	assert.False(t, (&engine.Session{}).Authenticated())

	s := &engine.Session{User: map[string]any{"id": "u1"}}
	assert.True(t, s.Authenticated())
	assert.Equal(t, "u1", s.UserID())
}

func TestNewResponse(t *testing.T) {
	t.Parallel()

	resp := engine.NewResponse(http.StatusNotFound, "Not Found")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, mo.Some("Not Found"), resp.Body)

	empty := engine.NewResponse(http.StatusNoContent, "")
	assert.True(t, empty.Body.IsAbsent())
}

func TestFuncs(t *testing.T) {
	t.Parallel()

	var unset engine.Funcs
	_, err := unset.Handle(context.Background(), &engine.Request{})
	require.ErrorIs(t, err, engine.ErrNotSupported)
	_, err = unset.GetSession(context.Background(), nil)
	require.ErrorIs(t, err, engine.ErrNotSupported)
	_, err = unset.SignOut(context.Background(), nil)
	require.ErrorIs(t, err, engine.ErrNotSupported)

	bound := engine.Funcs{
		HandleFunc: func(_ context.Context, req *engine.Request) (*engine.Response, error) {
			return engine.NewResponse(http.StatusOK, req.Method), nil
		},
		SignOutFunc: func(context.Context, engine.Header) (engine.SignOutResult, error) {
			return engine.SignOutResult{Success: true}, nil
		},
	}

	resp, err := bound.Handle(context.Background(), &engine.Request{Method: http.MethodPost})
	require.NoError(t, err)
	assert.Equal(t, "POST", resp.Body.OrEmpty())

	result, err := bound.SignOut(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
}
