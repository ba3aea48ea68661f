package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/omarluq/auth-relay/internal/engine"
	"github.com/omarluq/auth-relay/internal/logging"
)

const sessionKeyPrefix = "session:"

// SessionEngine decorates an engine so authenticated GetSession results are
// reused for ttl. Entries for a caller are dropped on SignOut, on any
// non-GET request forwarded through Handle, and whenever an engine response
// sets cookies.
type SessionEngine struct {
	engine.Engine
	cache    Cache
	logger   *logging.Logger
	inflight map[string]*lookup
	ttl      time.Duration
	mu       sync.Mutex
}

// lookup tracks engine calls in progress for one key. A forget while any
// of them is outstanding marks the lookup revoked and none of them store.
type lookup struct {
	pending int
	revoked bool
}

// NewSessionEngine wraps inner with c.
func NewSessionEngine(inner engine.Engine, c Cache, ttl time.Duration, logger *logging.Logger) *SessionEngine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SessionEngine{
		Engine:   inner,
		cache:    c,
		logger:   logger,
		inflight: make(map[string]*lookup),
		ttl:      ttl,
	}
}

// SessionKey derives the cache key from the caller's credentials: every
// cookie and authorization value, in order. It reports false when neither
// header is present.
func SessionKey(h engine.Header) (string, bool) {
	cookies := h.Values("cookie")
	authz := h.Values("authorization")
	if len(cookies) == 0 && len(authz) == 0 {
		return "", false
	}

	digest := sha256.New()
	for _, group := range [][]string{cookies, authz} {
		for _, value := range group {
			_, _ = fmt.Fprintf(digest, "%d:%s\x00", len(value), value)
		}
		_, _ = digest.Write([]byte{0x01})
	}
	return sessionKeyPrefix + hex.EncodeToString(digest.Sum(nil)), true
}

// GetSession answers from the cache when possible. Anonymous results and
// errors are never cached.
func (s *SessionEngine) GetSession(ctx context.Context, h engine.Header) (*engine.Session, error) {
	key, ok := SessionKey(h)
	if !ok {
		return s.Engine.GetSession(ctx, h)
	}

	if data, err := s.cache.Get(ctx, key); err == nil {
		var sess engine.Session
		if err := json.Unmarshal(data, &sess); err == nil && sess.Authenticated() {
			return &sess, nil
		}
	}

	l := s.begin(key)
	sess, err := s.Engine.GetSession(ctx, h)
	s.finish(ctx, key, l, sess, err)
	return sess, err
}

func (s *SessionEngine) begin(key string) *lookup {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.inflight[key]
	if !ok {
		l = &lookup{}
		s.inflight[key] = l
	}
	l.pending++
	return l
}

// finish stores an authenticated result unless the key was forgotten while
// the engine call was outstanding.
func (s *SessionEngine) finish(ctx context.Context, key string, l *lookup, sess *engine.Session, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.pending--
	if l.pending == 0 {
		delete(s.inflight, key)
	}
	if err != nil || !sess.Authenticated() || l.revoked {
		return
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return
	}
	if err := s.cache.SetWithTTL(ctx, key, data, s.ttl); err != nil {
		s.logger.Debug("session cache write failed", logging.Fields{"errorName": logging.ErrorName(err)})
	}
}

// SignOut forgets the caller's entry before and after delegating, so a
// lookup that overlaps the sign-out cannot leave the session cached.
func (s *SessionEngine) SignOut(ctx context.Context, h engine.Header) (engine.SignOutResult, error) {
	s.forget(ctx, h)
	defer s.forget(ctx, h)
	return s.Engine.SignOut(ctx, h)
}

// Handle forgets the caller's entry around state-changing requests and
// after any response that sets cookies.
func (s *SessionEngine) Handle(ctx context.Context, req *engine.Request) (*engine.Response, error) {
	mutating := req.Method != http.MethodGet && req.Method != http.MethodHead
	if mutating {
		s.forget(ctx, req.Header)
	}

	resp, err := s.Engine.Handle(ctx, req)
	if mutating || (resp != nil && len(resp.Header.Values("set-cookie")) > 0) {
		s.forget(ctx, req.Header)
	}
	return resp, err
}

func (s *SessionEngine) forget(ctx context.Context, h engine.Header) {
	key, ok := SessionKey(h)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.inflight[key]; ok {
		l.revoked = true
	}
	if err := s.cache.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Debug("session cache invalidation failed", logging.Fields{"errorName": logging.ErrorName(err)})
	}
}

var _ engine.Engine = (*SessionEngine)(nil)
