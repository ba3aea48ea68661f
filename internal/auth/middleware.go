package auth

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/omarluq/auth-relay/internal/engine"
	"github.com/omarluq/auth-relay/internal/httpx"
)

// Middleware enforces policy on a net/http route. Failures answer 401 for
// authentication and 403 for authorization.
func Middleware(chain *Chain, policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := chain.Evaluate(r.Context(), RequestHeader(r), policy)
			if err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Msg("access denied")
				WriteAccessError(w, err)
				return
			}

			ctx := r.Context()
			if d.Session != nil {
				ctx = WithSession(ctx, d.Session)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StatusFor maps an access error to its HTTP status.
func StatusFor(err error) int {
	var forbidden *ForbiddenError
	switch {
	case errors.As(err, &forbidden), errors.Is(err, ErrUserNotFound):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// WriteAccessError renders err as a JSON error body.
func WriteAccessError(w http.ResponseWriter, err error) {
	var forbidden *ForbiddenError
	switch {
	case errors.As(err, &forbidden):
		httpx.WriteError(w, http.StatusForbidden, httpx.TypePermission, forbidden.Error())
	case errors.Is(err, ErrUserNotFound):
		httpx.WriteError(w, http.StatusForbidden, httpx.TypePermission, MessageUserNotFound)
	case errors.Is(err, ErrUnauthenticated):
		httpx.WriteError(w, http.StatusUnauthorized, httpx.TypeAuthentication, MessageUnauthenticated)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, httpx.TypeAPI, http.StatusText(http.StatusInternalServerError))
	}
}

// RequestHeader canonicalizes r's headers for the engine. net/http keeps
// Host outside the header map; the engine needs it for origin checks.
func RequestHeader(r *http.Request) engine.Header {
	h := engine.HeaderFrom(r.Header)
	if r.Host != "" {
		h.Set("host", r.Host)
	}
	return h
}
