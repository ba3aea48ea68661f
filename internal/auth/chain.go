package auth

import (
	"context"

	"github.com/samber/lo"
	"github.com/samber/mo"

	"github.com/omarluq/auth-relay/internal/engine"
	"github.com/omarluq/auth-relay/internal/logging"
)

// Chain runs guards in order and stops at the first failure.
type Chain struct {
	guards []Guard
}

// NewChain returns a chain of the given guards.
func NewChain(guards ...Guard) *Chain {
	return &Chain{guards: guards}
}

// DefaultChain is authentication followed by role checks.
func DefaultChain(eng engine.Engine, logger *logging.Logger) *Chain {
	return NewChain(NewSessionGuard(eng, logger), RoleGuard{})
}

// Evaluate runs every guard against header and policy. The returned
// Decision holds the session when authentication ran and succeeded.
func (c *Chain) Evaluate(ctx context.Context, header engine.Header, policy Policy) (*Decision, error) {
	d := &Decision{Header: header, Policy: policy}

	// Once a guard has failed the rest are skipped.
	err := lo.Reduce[Guard, error](c.guards, func(acc error, g Guard, _ int) error {
		if acc != nil {
			return acc
		}
		return g.Check(ctx, d)
	}, nil)

	return d, err
}

// Authorize is Evaluate as a mo.Result over the session.
func (c *Chain) Authorize(ctx context.Context, header engine.Header, policy Policy) mo.Result[*engine.Session] {
	d, err := c.Evaluate(ctx, header, policy)
	if err != nil {
		return mo.Err[*engine.Session](err)
	}
	return mo.Ok(d.Session)
}

// Guards returns the guard names in evaluation order.
func (c *Chain) Guards() []string {
	return lo.Map(c.guards, func(g Guard, _ int) string { return g.Name() })
}
