package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/omarluq/auth-relay/internal/engine"
	"github.com/omarluq/auth-relay/internal/httpx"
	"github.com/omarluq/auth-relay/internal/ratelimit"
	"github.com/omarluq/auth-relay/internal/validate"
)

// Bridge errors.
var (
	ErrNoEngine   = errors.New("bridge: engine is required")
	ErrReadBody   = errors.New("bridge: failed to read request body")
	ErrNoRuntime  = errors.New("bridge: runtime config is required")
	errNilRequest = errors.New("bridge: nil request")
)

// Fixed bodies for synthesized replies.
const (
	NotFoundBody            = "Not Found"
	InternalServerErrorBody = "Internal Server Error"
)

// RateLimitError rejects a request before it reaches the engine.
type RateLimitError struct {
	Identifier string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("bridge: rate limit exceeded for %s", e.Identifier)
}

// Unwrap lets errors.Is match ratelimit.ErrRateLimitExceeded.
func (e *RateLimitError) Unwrap() error {
	return ratelimit.ErrRateLimitExceeded
}

// ErrorHandler renders a failed auth request on the net/http binding.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// StatusFor maps a bridge failure to an HTTP status.
func StatusFor(err error) int {
	var rle *RateLimitError
	switch {
	case errors.As(err, &rle), errors.Is(err, ratelimit.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, validate.ErrBodyTooLarge), httpx.IsBodyTooLargeError(err):
		return http.StatusRequestEntityTooLarge
	case validate.IsClientError(err), errors.Is(err, ErrReadBody):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrResponseTooLarge):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// DefaultErrorHandler writes a JSON error body. Client errors carry their
// validation reason; everything else carries only the status text.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		httpx.WriteRateLimitError(w, rle.RetryAfter)
		return
	}

	status := StatusFor(err)
	switch status {
	case http.StatusBadRequest:
		httpx.WriteError(w, status, httpx.TypeInvalidRequest, validate.Reason(err))
	case http.StatusRequestEntityTooLarge:
		httpx.WriteError(w, status, httpx.TypeRequestTooLarge, validate.Reason(validate.ErrBodyTooLarge))
	default:
		httpx.WriteError(w, status, httpx.TypeAPI, http.StatusText(status))
	}
}

// writeInternalError is the uniform reply used when the error pipeline is
// disabled, so different failures look identical to the client.
func writeInternalError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(InternalServerErrorBody))
}
