package auth

import (
	"context"

	"github.com/samber/lo"
)

// RoleGuard enforces Policy.Roles.
type RoleGuard struct{}

// Name returns "roles".
func (RoleGuard) Name() string { return "roles" }

// Check passes when no roles are required or the user holds at least one.
// A user with no roles never satisfies a non-empty requirement.
func (RoleGuard) Check(_ context.Context, d *Decision) error {
	if len(d.Policy.Roles) == 0 {
		return nil
	}
	if !d.Session.Authenticated() {
		return ErrUserNotFound
	}
	if !lo.Some(d.Session.Roles(), d.Policy.Roles) {
		return &ForbiddenError{Required: d.Policy.Roles}
	}
	return nil
}
