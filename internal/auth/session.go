package auth

import (
	"context"

	"github.com/omarluq/auth-relay/internal/engine"
	"github.com/omarluq/auth-relay/internal/logging"
)

// SessionGuard resolves the caller's session through the engine.
type SessionGuard struct {
	engine engine.Engine
	logger *logging.Logger
}

// NewSessionGuard creates a guard backed by eng.
func NewSessionGuard(eng engine.Engine, logger *logging.Logger) *SessionGuard {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SessionGuard{engine: eng, logger: logger}
}

// Name returns "session".
func (g *SessionGuard) Name() string { return "session" }

// Check attaches the session to d. Public policies pass without a lookup.
// A lookup error, a missing session or a session without a user all fail
// with ErrUnauthenticated.
func (g *SessionGuard) Check(ctx context.Context, d *Decision) error {
	if d.Policy.Public {
		return nil
	}

	sess, err := g.engine.GetSession(ctx, d.Header)
	if err != nil {
		g.logger.Debug("session lookup failed", logging.Fields{"errorName": logging.ErrorName(err)})
		return ErrUnauthenticated
	}
	if !sess.Authenticated() {
		return ErrUnauthenticated
	}

	d.Session = sess
	return nil
}
