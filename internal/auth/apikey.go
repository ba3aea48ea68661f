package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/mo"

	"github.com/omarluq/auth-relay/internal/httpx"
)

// API key errors.
var (
	ErrMissingAPIKey = errors.New("auth: missing x-api-key header")
	ErrInvalidAPIKey = errors.New("auth: invalid x-api-key")
)

// APIKeyAuthenticator checks a static operator key sent as x-api-key or as
// an Authorization bearer token.
type APIKeyAuthenticator struct {
	expectedHash [32]byte
}

// NewAPIKeyAuthenticator hashes expectedKey once up front.
func NewAPIKeyAuthenticator(expectedKey string) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{
		// #nosec G401 -- SHA-256 is appropriate for high-entropy API keys (not passwords)
		expectedHash: sha256.Sum256([]byte(expectedKey)),
	}
}

// Validate returns nil when r carries the expected key.
func (a *APIKeyAuthenticator) Validate(r *http.Request) error {
	return a.ValidateResult(r).Error()
}

// ValidateResult returns the presented key on success.
func (a *APIKeyAuthenticator) ValidateResult(r *http.Request) mo.Result[string] {
	provided := presentedKey(r.Header)
	if provided == "" {
		return mo.Err[string](ErrMissingAPIKey)
	}

	// #nosec G401 -- SHA-256 is appropriate for high-entropy API keys (not passwords)
	providedHash := sha256.Sum256([]byte(provided))
	if subtle.ConstantTimeCompare(providedHash[:], a.expectedHash[:]) != 1 {
		return mo.Err[string](ErrInvalidAPIKey)
	}
	return mo.Ok(provided)
}

func presentedKey(h http.Header) string {
	if key := h.Get("X-API-Key"); key != "" {
		return key
	}
	authz := h.Get("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

// APIKeyMiddleware rejects requests without the operator key with 401.
func APIKeyMiddleware(a *APIKeyAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := a.Validate(r); err != nil {
				failAPIKey(w, r, err)
				return
			}
			zerolog.Ctx(r.Context()).Debug().Msg("authentication succeeded")
			next.ServeHTTP(w, r)
		})
	}
}

// GinAPIKeyMiddleware is APIKeyMiddleware for gin routes.
func GinAPIKeyMiddleware(a *APIKeyAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.Validate(c.Request); err != nil {
			failAPIKey(c.Writer, c.Request, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

func failAPIKey(w http.ResponseWriter, r *http.Request, err error) {
	msg := strings.TrimPrefix(err.Error(), "auth: ")
	zerolog.Ctx(r.Context()).Warn().Msg("authentication failed: " + msg)
	httpx.WriteError(w, http.StatusUnauthorized, httpx.TypeAuthentication, msg)
}
