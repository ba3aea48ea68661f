// Package validate hardens the translation of native HTTP requests into
// canonical engine requests. It sanitizes the Host header and header set,
// bounds and screens request bodies, and rejects traversal or control
// sequences in request targets.
package validate

import (
	"errors"
	"strings"

	"github.com/samber/lo"

	"github.com/omarluq/auth-relay/internal/logging"
)

// Limits applied during validation.
const (
	DefaultMaxBodySize   = 1 << 20
	MaxHeaderCount       = 100
	MaxHeaderNameLength  = 256
	MaxHeaderValueLength = 8192
	MaxURLLength         = 2048
	FallbackHost         = "localhost"
)

// DefaultAllowedContentTypes are accepted when no allow-list is configured.
var DefaultAllowedContentTypes = []string{
	"application/json",
	"application/x-www-form-urlencoded",
}

// Validation errors.
var (
	ErrTooManyHeaders     = errors.New("validate: too many headers")
	ErrInvalidContentType = errors.New("validate: invalid content type")
	ErrInvalidBodyFormat  = errors.New("validate: invalid request body format")
	ErrBodyTooLarge       = errors.New("validate: request body too large")
	ErrURLRequired        = errors.New("validate: url is required")
	ErrPathTraversal      = errors.New("validate: invalid url path")
	ErrInvalidURLFormat   = errors.New("validate: invalid url format")
	ErrURLTooLong         = errors.New("validate: url too long")
	ErrMethodRequired     = errors.New("validate: http method is required")
)

// reasons are the terse client-facing descriptions of each failure.
var reasons = []lo.Tuple2[error, string]{
	lo.T2(ErrTooManyHeaders, "Too many headers"),
	lo.T2(ErrInvalidContentType, "Invalid content type"),
	lo.T2(ErrInvalidBodyFormat, "Invalid request body format"),
	lo.T2(ErrBodyTooLarge, "Request body too large"),
	lo.T2(ErrURLRequired, "URL is required"),
	lo.T2(ErrPathTraversal, "Invalid URL path"),
	lo.T2(ErrInvalidURLFormat, "Invalid URL format"),
	lo.T2(ErrURLTooLong, "URL too long"),
	lo.T2(ErrMethodRequired, "HTTP method is required"),
}

// IsClientError reports whether err is a validation failure caused by the
// request rather than by the server.
func IsClientError(err error) bool {
	_, ok := lo.Find(reasons, func(r lo.Tuple2[error, string]) bool {
		return errors.Is(err, r.A)
	})
	return ok
}

// Reason returns the client-facing description of a validation error,
// or "Invalid request" for anything else.
func Reason(err error) string {
	r, ok := lo.Find(reasons, func(r lo.Tuple2[error, string]) bool {
		return errors.Is(err, r.A)
	})
	if !ok {
		return "Invalid request"
	}
	return r.B
}

// Config tunes body validation.
type Config struct {
	AllowedContentTypes []string
	MaxBodySize         int64
}

// Validator applies the request hardening rules. It holds no per-request
// state and is safe for concurrent use.
type Validator struct {
	logger       *logging.Logger
	allowed      map[string]struct{}
	allowedNames []string
	maxBodySize  int64
}

// New creates a Validator. Zero values in cfg fall back to defaults.
func New(cfg Config, logger *logging.Logger) *Validator {
	if logger == nil {
		logger = logging.Nop()
	}

	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}

	types := cfg.AllowedContentTypes
	if len(types) == 0 {
		types = DefaultAllowedContentTypes
	}

	allowed := make(map[string]struct{}, len(types))
	for _, ct := range types {
		allowed[normalizeMediaType(ct)] = struct{}{}
	}

	return &Validator{
		logger:       logger,
		allowed:      allowed,
		allowedNames: append([]string(nil), types...),
		maxBodySize:  maxBody,
	}
}

// MaxBodySize returns the effective body limit in bytes.
func (v *Validator) MaxBodySize() int64 {
	return v.maxBodySize
}

func normalizeMediaType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}
