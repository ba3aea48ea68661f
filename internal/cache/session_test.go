package cache_test

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarluq/auth-relay/internal/cache"
	"github.com/omarluq/auth-relay/internal/engine"
)

type countingEngine struct {
	engine.Funcs
	sessions atomic.Int32
}

func newCountingEngine(sess *engine.Session, err error) *countingEngine {
	ce := &countingEngine{}
	ce.GetSessionFunc = func(context.Context, engine.Header) (*engine.Session, error) {
		ce.sessions.Add(1)
		return sess, err
	}
	ce.SignOutFunc = func(context.Context, engine.Header) (engine.SignOutResult, error) {
		return engine.SignOutResult{Success: true}, nil
	}
	ce.HandleFunc = func(_ context.Context, req *engine.Request) (*engine.Response, error) {
		resp := engine.NewResponse(http.StatusOK, "{}")
		if req.URL == "http://relay/api/auth/sign-in" {
			resp.Header.Add("set-cookie", "sid=new")
		}
		return resp, nil
	}
	return ce
}

func cookieHeader(value string) engine.Header {
	h := engine.Header{}
	h.Set("cookie", value)
	return h
}

func memberSession() *engine.Session {
	return &engine.Session{
		User:    map[string]any{"id": "u1", "role": "member"},
		Session: map[string]any{"id": "s1"},
	}
}

func TestSessionKey(t *testing.T) {
	t.Parallel()

	_, ok := cache.SessionKey(engine.Header{})
	assert.False(t, ok)

	a, ok := cache.SessionKey(cookieHeader("sid=a"))
	require.True(t, ok)
	b, _ := cache.SessionKey(cookieHeader("sid=b"))
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "session:")
	assert.NotContains(t, a, "sid=a")

	bearer := engine.Header{}
	bearer.Set("authorization", "Bearer t")
	_, ok = cache.SessionKey(bearer)
	assert.True(t, ok)
}

func TestSessionEngine_CachesAuthenticated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner := newCountingEngine(memberSession(), nil)
	se := cache.NewSessionEngine(inner, newRistretto(t), time.Minute, nil)

	first, err := se.GetSession(ctx, cookieHeader("sid=a"))
	require.NoError(t, err)
	second, err := se.GetSession(ctx, cookieHeader("sid=a"))
	require.NoError(t, err)

	assert.Equal(t, int32(1), inner.sessions.Load())
	assert.Equal(t, first.UserID(), second.UserID())
	assert.Equal(t, []string{"member"}, second.Roles())

	_, err = se.GetSession(ctx, cookieHeader("sid=b"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.sessions.Load())
}

func TestSessionEngine_DoesNotCache(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		sess   *engine.Session
		name   string
		header engine.Header
	}{
		{name: "anonymous", sess: &engine.Session{}, header: cookieHeader("sid=a")},
		{name: "nil session", header: cookieHeader("sid=a")},
		{name: "engine error", err: errors.New("boom"), header: cookieHeader("sid=a")},
		{name: "no credentials", sess: memberSession(), header: engine.Header{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			inner := newCountingEngine(tt.sess, tt.err)
			se := cache.NewSessionEngine(inner, newRistretto(t), time.Minute, nil)

			for range 2 {
				_, err := se.GetSession(ctx, tt.header)
				if tt.err != nil {
					require.ErrorIs(t, err, tt.err)
				}
			}
			assert.Equal(t, int32(2), inner.sessions.Load())
		})
	}
}

func TestSessionEngine_Invalidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		act  func(ctx context.Context, se *cache.SessionEngine, h engine.Header) error
		name string
	}{
		{
			name: "sign out",
			act: func(ctx context.Context, se *cache.SessionEngine, h engine.Header) error {
				res, err := se.SignOut(ctx, h)
				if err == nil && !res.Success {
					return errors.New("sign out not reported")
				}
				return err
			},
		},
		{
			name: "post through handle",
			act: func(ctx context.Context, se *cache.SessionEngine, h engine.Header) error {
				_, err := se.Handle(ctx, &engine.Request{
					Method: http.MethodPost,
					URL:    "http://relay/api/auth/update-user",
					Header: h,
				})
				return err
			},
		},
		{
			name: "response sets cookie",
			act: func(ctx context.Context, se *cache.SessionEngine, h engine.Header) error {
				_, err := se.Handle(ctx, &engine.Request{
					Method: http.MethodGet,
					URL:    "http://relay/api/auth/sign-in",
					Header: h,
				})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			h := cookieHeader("sid=a")
			inner := newCountingEngine(memberSession(), nil)
			se := cache.NewSessionEngine(inner, newRistretto(t), time.Minute, nil)

			_, err := se.GetSession(ctx, h)
			require.NoError(t, err)
			require.NoError(t, tt.act(ctx, se, h))
			_, err = se.GetSession(ctx, h)
			require.NoError(t, err)

			assert.Equal(t, int32(2), inner.sessions.Load())
		})
	}
}

func TestSessionEngine_PlainGetKeepsEntry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := cookieHeader("sid=a")
	inner := newCountingEngine(memberSession(), nil)
	se := cache.NewSessionEngine(inner, newRistretto(t), time.Minute, nil)

	_, err := se.GetSession(ctx, h)
	require.NoError(t, err)
	_, err = se.Handle(ctx, &engine.Request{Method: http.MethodGet, URL: "http://relay/api/auth/ok", Header: h})
	require.NoError(t, err)
	_, err = se.GetSession(ctx, h)
	require.NoError(t, err)

	assert.Equal(t, int32(1), inner.sessions.Load())
}

func TestSessionKey_CoversEveryCredentialValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b engine.Header
		name string
	}{
		{
			name: "later cookie line",
			a:    engine.Header{"cookie": {"theme=dark", "session_token=alice"}},
			b:    engine.Header{"cookie": {"theme=dark"}},
		},
		{
			name: "different later cookie line",
			a:    engine.Header{"cookie": {"theme=dark", "session_token=alice"}},
			b:    engine.Header{"cookie": {"theme=dark", "session_token=bob"}},
		},
		{
			name: "cookie order",
			a:    engine.Header{"cookie": {"a=1", "b=2"}},
			b:    engine.Header{"cookie": {"b=2", "a=1"}},
		},
		{
			name: "split values",
			a:    engine.Header{"cookie": {"a=1b=2"}},
			b:    engine.Header{"cookie": {"a=1", "b=2"}},
		},
		{
			name: "cookie versus authorization",
			a:    engine.Header{"cookie": {"tok"}},
			b:    engine.Header{"authorization": {"tok"}},
		},
		{
			name: "second authorization value",
			a:    engine.Header{"authorization": {"Bearer a", "Bearer b"}},
			b:    engine.Header{"authorization": {"Bearer a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			keyA, ok := cache.SessionKey(tt.a)
			require.True(t, ok)
			keyB, ok := cache.SessionKey(tt.b)
			require.True(t, ok)
			assert.NotEqual(t, keyA, keyB)
		})
	}
}

func TestSessionEngine_SharedFirstCookieDoesNotShareSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner := &countingEngine{}
	inner.GetSessionFunc = func(_ context.Context, h engine.Header) (*engine.Session, error) {
		inner.sessions.Add(1)
		if len(h.Values("cookie")) == 2 {
			return memberSession(), nil
		}
		return nil, nil
	}
	se := cache.NewSessionEngine(inner, newRistretto(t), time.Minute, nil)

	owner := engine.Header{"cookie": {"theme=dark", "session_token=alice"}}
	sess, err := se.GetSession(ctx, owner)
	require.NoError(t, err)
	require.True(t, sess.Authenticated())

	other, err := se.GetSession(ctx, engine.Header{"cookie": {"theme=dark"}})
	require.NoError(t, err)
	assert.False(t, other.Authenticated())
	assert.Equal(t, int32(2), inner.sessions.Load())
}

func TestSessionEngine_SignOutDuringLookupIsNotCached(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := cookieHeader("sid=a")

	var signedOut atomic.Bool
	started := make(chan struct{})
	release := make(chan struct{})

	inner := &countingEngine{}
	inner.GetSessionFunc = func(context.Context, engine.Header) (*engine.Session, error) {
		if inner.sessions.Add(1) == 1 {
			close(started)
			<-release
			return memberSession(), nil
		}
		if signedOut.Load() {
			return nil, nil
		}
		return memberSession(), nil
	}
	inner.SignOutFunc = func(context.Context, engine.Header) (engine.SignOutResult, error) {
		signedOut.Store(true)
		return engine.SignOutResult{Success: true}, nil
	}
	se := cache.NewSessionEngine(inner, newRistretto(t), time.Minute, nil)

	done := make(chan error, 1)
	go func() {
		_, err := se.GetSession(ctx, h)
		done <- err
	}()

	<-started
	_, err := se.SignOut(ctx, h)
	require.NoError(t, err)
	close(release)
	require.NoError(t, <-done)

	sess, err := se.GetSession(ctx, h)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
	assert.Equal(t, int32(2), inner.sessions.Load())
}

func TestSessionEngine_LookupAfterForgetIsCachedAgain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := cookieHeader("sid=a")
	inner := newCountingEngine(memberSession(), nil)
	se := cache.NewSessionEngine(inner, newRistretto(t), time.Minute, nil)

	_, err := se.Handle(ctx, &engine.Request{Method: http.MethodPost, URL: "http://relay/api/auth/update-user", Header: h})
	require.NoError(t, err)

	for range 3 {
		_, err = se.GetSession(ctx, h)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), inner.sessions.Load())
}

type failingDeleteCache struct {
	cache.Cache
	deletes atomic.Int32
}

func (f *failingDeleteCache) Delete(context.Context, string) error {
	f.deletes.Add(1)
	return cache.ErrClosed
}

func TestSessionEngine_InvalidationFailureDoesNotFailSignOut(t *testing.T) {
	t.Parallel()

	c := &failingDeleteCache{Cache: cache.NewNoop()}
	se := cache.NewSessionEngine(newCountingEngine(memberSession(), nil), c, time.Minute, nil)

	res, err := se.SignOut(context.Background(), cookieHeader("sid=a"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int32(2), c.deletes.Load())
}
