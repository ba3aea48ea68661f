// Package auth gates protected routes on the engine's session: SessionGuard
// requires a signed-in user, RoleGuard requires one of a set of roles, and
// Chain runs them in that order. APIKeyAuthenticator protects operator
// endpoints with a static key.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/omarluq/auth-relay/internal/engine"
)

// Access errors.
var (
	ErrUnauthenticated = errors.New("auth: invalid authentication token")
	ErrUserNotFound    = errors.New("auth: user not found in request")
)

// Client-facing failure messages.
const (
	MessageUnauthenticated = "Invalid authentication token"
	MessageUserNotFound    = "User not found in request"
)

// ForbiddenError is returned when the user holds none of the required roles.
type ForbiddenError struct {
	Required []string
}

func (e *ForbiddenError) Error() string {
	return "Access denied. Required roles: " + strings.Join(e.Required, ", ")
}

// Policy describes what a route requires.
type Policy struct {
	// Roles lists acceptable roles; holding any one is enough. Empty means
	// any authenticated user.
	Roles []string
	// Public skips the session check.
	Public bool
}

// Protected is the policy for routes that need only a session.
var Protected = Policy{}

// RequireRoles returns a policy requiring any of roles.
func RequireRoles(roles ...string) Policy {
	return Policy{Roles: roles}
}

// Decision carries one access check through the guards.
type Decision struct {
	Header  engine.Header
	Session *engine.Session
	Policy  Policy
}

// Guard is one access rule.
type Guard interface {
	Check(ctx context.Context, d *Decision) error
	Name() string
}
