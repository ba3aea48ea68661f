package bridge_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omarluq/auth-relay/internal/bridge"
	"github.com/omarluq/auth-relay/internal/config"
	"github.com/omarluq/auth-relay/internal/engine"
	"github.com/omarluq/auth-relay/internal/ratelimit"
)

// recorder is an engine that remembers every request it handled.
type recorder struct {
	respond  func(ctx context.Context, req *engine.Request) (*engine.Response, error)
	requests []*engine.Request
	mu       sync.Mutex
}

func newRecorder() *recorder {
	return &recorder{
		respond: func(context.Context, *engine.Request) (*engine.Response, error) {
			return engine.NewResponse(200, `{"ok":true}`), nil
		},
	}
}

func (r *recorder) engine() engine.Engine {
	return engine.Funcs{
		HandleFunc: func(ctx context.Context, req *engine.Request) (*engine.Response, error) {
			r.mu.Lock()
			r.requests = append(r.requests, req)
			r.mu.Unlock()
			return r.respond(ctx, req)
		},
	}
}

func (r *recorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func (r *recorder) last(t *testing.T) *engine.Request {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.requests, "engine was not called")
	return r.requests[len(r.requests)-1]
}

func baseConfig(mutate ...func(*config.Config)) *config.Config {
	cfg := &config.Config{
		Server: config.ServerConfig{Listen: "127.0.0.1:0"},
		Engine: config.EngineConfig{BaseURL: "http://127.0.0.1:3000"},
	}
	for _, m := range mutate {
		m(cfg)
	}
	return cfg
}

func newBridge(t *testing.T, rec *recorder, cfg *config.Config, opts ...bridge.Option) *bridge.Bridge {
	t.Helper()
	b, err := bridge.New(rec.engine(), config.Static{Config: cfg}, opts...)
	require.NoError(t, err)
	return b
}

func intPtr(v int) *int { return &v }

// countingLimiter never limits and counts how often it was consulted.
type countingLimiter struct {
	checks atomic.Int32
	infos  atomic.Int32
}

func (l *countingLimiter) IsRateLimited(string, ratelimit.Config) bool {
	l.checks.Add(1)
	return false
}

func (l *countingLimiter) Info(string, ratelimit.Config) ratelimit.Info {
	l.infos.Add(1)
	return ratelimit.Info{}
}

func (l *countingLimiter) consulted() int32 {
	return l.checks.Load() + l.infos.Load()
}
