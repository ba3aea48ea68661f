// Package engine defines the canonical request and response model exchanged
// with an external authentication engine, and the contract that engine
// fulfils. The engine itself is not part of auth-relay.
package engine

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/samber/mo"
)

// Engine errors.
var (
	// ErrNotSupported is returned by Funcs when an operation has no function bound.
	ErrNotSupported = errors.New("engine: operation not supported")
	// ErrCircuitOpen is returned while the engine circuit breaker is open.
	ErrCircuitOpen = errors.New("engine: circuit breaker open")
	// ErrInvalidPayload is returned when the engine answers with malformed JSON.
	ErrInvalidPayload = errors.New("engine: invalid response payload")
	// ErrResponseTooLarge is returned when an engine reply exceeds the read limit.
	ErrResponseTooLarge = errors.New("engine: response too large")
)

// Engine is the authentication engine contract.
// Handle answers any request under the auth mount; GetSession and SignOut are
// the two session operations the access layer and host routes rely on.
type Engine interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
	GetSession(ctx context.Context, headers Header) (*Session, error)
	SignOut(ctx context.Context, headers Header) (SignOutResult, error)
}

// Header maps lower-cased header names to their values.
type Header map[string][]string

// HeaderFrom copies an http.Header, lower-casing every name.
func HeaderFrom(src http.Header) Header {
	h := make(Header, len(src))
	for name, values := range src {
		key := strings.ToLower(name)
		h[key] = append(h[key], values...)
	}
	return h
}

// Get returns the first value for name, or "".
func (h Header) Get(name string) string {
	values := h[strings.ToLower(name)]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Values returns all values for name.
func (h Header) Values(name string) []string {
	return h[strings.ToLower(name)]
}

// Set replaces the values for name.
func (h Header) Set(name, value string) {
	h[strings.ToLower(name)] = []string{value}
}

// Add appends a value for name.
func (h Header) Add(name, value string) {
	key := strings.ToLower(name)
	h[key] = append(h[key], value)
}

// Del removes name.
func (h Header) Del(name string) {
	delete(h, strings.ToLower(name))
}

// Clone returns a deep copy.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	for name, values := range h {
		out[name] = append([]string(nil), values...)
	}
	return out
}

// HTTP converts to an http.Header with canonical names.
func (h Header) HTTP() http.Header {
	out := make(http.Header, len(h))
	for name, values := range h {
		key := http.CanonicalHeaderKey(name)
		out[key] = append(out[key], values...)
	}
	return out
}

// Request is the framework-neutral request handed to the engine.
// URL is absolute. GET and HEAD requests never carry a body.
type Request struct {
	Header Header
	Body   mo.Option[string]
	Method string
	URL    string
}

// Response is the framework-neutral reply produced by the engine.
type Response struct {
	Header Header
	Body   mo.Option[string]
	Status int
}

// NewResponse returns a response with a text body.
func NewResponse(status int, body string) *Response {
	resp := &Response{Status: status, Header: Header{}, Body: mo.None[string]()}
	if body != "" {
		resp.Body = mo.Some(body)
	}
	return resp
}

// Session is the engine's view of an authenticated session.
type Session struct {
	Session map[string]any `json:"session"`
	User    map[string]any `json:"user"`
}

// Authenticated reports whether the session carries a user.
func (s *Session) Authenticated() bool {
	return s != nil && s.User != nil
}

// UserID returns user.id when it is a string.
func (s *Session) UserID() string {
	if !s.Authenticated() {
		return ""
	}
	id, _ := s.User["id"].(string)
	return id
}

// Roles returns the user's roles. A "roles" list wins over a comma-separated
// "role" string. A missing user yields nil.
func (s *Session) Roles() []string {
	if !s.Authenticated() {
		return nil
	}

	switch roles := s.User["roles"].(type) {
	case []string:
		return roles
	case []any:
		out := make([]string, 0, len(roles))
		for _, r := range roles {
			if name, ok := r.(string); ok && name != "" {
				out = append(out, name)
			}
		}
		return out
	}

	role, _ := s.User["role"].(string)
	if role == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(role, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SignOutResult reports the outcome of a sign-out.
type SignOutResult struct {
	Success bool `json:"success"`
}

// Funcs adapts plain functions to Engine. Unset functions return ErrNotSupported.
type Funcs struct {
	HandleFunc     func(ctx context.Context, req *Request) (*Response, error)
	GetSessionFunc func(ctx context.Context, headers Header) (*Session, error)
	SignOutFunc    func(ctx context.Context, headers Header) (SignOutResult, error)
}

// Handle calls HandleFunc.
func (f Funcs) Handle(ctx context.Context, req *Request) (*Response, error) {
	if f.HandleFunc == nil {
		return nil, ErrNotSupported
	}
	return f.HandleFunc(ctx, req)
}

// GetSession calls GetSessionFunc.
func (f Funcs) GetSession(ctx context.Context, headers Header) (*Session, error) {
	if f.GetSessionFunc == nil {
		return nil, ErrNotSupported
	}
	return f.GetSessionFunc(ctx, headers)
}

// SignOut calls SignOutFunc.
func (f Funcs) SignOut(ctx context.Context, headers Header) (SignOutResult, error) {
	if f.SignOutFunc == nil {
		return SignOutResult{}, ErrNotSupported
	}
	return f.SignOutFunc(ctx, headers)
}

var _ Engine = Funcs{}
