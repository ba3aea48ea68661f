package auth

import (
	"context"

	"github.com/omarluq/auth-relay/internal/engine"
)

type ctxKey struct{}

// Gin context keys holding the user map and the full session.
const (
	GinUserKey    = "user"
	GinSessionKey = "session"
)

// WithSession returns ctx carrying sess.
func WithSession(ctx context.Context, sess *engine.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// SessionFromContext returns the session attached by the access middleware.
func SessionFromContext(ctx context.Context) (*engine.Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(*engine.Session)
	return sess, ok && sess != nil
}

// UserFromContext returns the session's user map.
func UserFromContext(ctx context.Context) (map[string]any, bool) {
	sess, ok := SessionFromContext(ctx)
	if !ok || sess.User == nil {
		return nil, false
	}
	return sess.User, true
}
