package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/tidwall/gjson"

	"github.com/omarluq/auth-relay/internal/logging"
)

// Default engine endpoints, relative to the engine base URL.
const (
	DefaultAuthPath       = "/api/auth"
	getSessionEndpoint    = "/get-session"
	signOutEndpoint       = "/sign-out"
	defaultEngineTimeout  = 30 * time.Second
	maxEngineResponseSize = 4 << 20
)

// StatusError is returned when the engine answers a session call with an
// unexpected status code.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("engine: %s returned status %d", e.Op, e.Status)
}

// HTTPEngine forwards canonical requests to an authentication engine served
// over HTTP. Redirects are returned to the caller rather than followed.
type HTTPEngine struct {
	baseURL  *url.URL
	client   *http.Client
	breaker  *CircuitBreaker
	logger   *logging.Logger
	authPath string
}

// HTTPOption configures an HTTPEngine.
type HTTPOption func(*HTTPEngine)

// WithHTTPClient sets the client used for engine calls.
// Its redirect policy is overridden so redirects reach the browser.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(e *HTTPEngine) {
		if client != nil {
			clone := *client
			e.client = &clone
		}
	}
}

// WithBreaker sets the circuit breaker guarding engine calls.
func WithBreaker(breaker *CircuitBreaker) HTTPOption {
	return func(e *HTTPEngine) {
		e.breaker = breaker
	}
}

// WithEngineLogger sets the logger.
func WithEngineLogger(logger *logging.Logger) HTTPOption {
	return func(e *HTTPEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithAuthPath sets the engine-side auth mount used by session calls.
func WithAuthPath(path string) HTTPOption {
	return func(e *HTTPEngine) {
		if path != "" {
			e.authPath = "/" + strings.Trim(path, "/")
		}
	}
}

// NewHTTPEngine creates an engine client for baseURL.
func NewHTTPEngine(baseURL string, opts ...HTTPOption) (*HTTPEngine, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("engine: parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("engine: base url must be http or https, got %q", baseURL)
	}

	e := &HTTPEngine{
		baseURL:  parsed,
		client:   &http.Client{Timeout: defaultEngineTimeout},
		logger:   logging.Nop(),
		authPath: DefaultAuthPath,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if e.breaker == nil {
		e.breaker = NewCircuitBreaker(parsed.Host, BreakerConfig{}, e.logger)
	}

	return e, nil
}

// Breaker exposes the circuit breaker for health reporting.
func (e *HTTPEngine) Breaker() *CircuitBreaker {
	return e.breaker
}

// Handle forwards req to the engine, keeping path and query.
// The original host and scheme travel in X-Forwarded-Host and X-Forwarded-Proto.
func (e *HTTPEngine) Handle(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("engine: nil request")
	}

	incoming, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("engine: parse request url: %w", err)
	}

	target := e.resolve(incoming.Path)
	target.RawPath = strings.TrimRight(e.baseURL.EscapedPath(), "/") + incoming.EscapedPath()
	target.RawQuery = incoming.RawQuery

	var body io.Reader
	if text, ok := req.Body.Get(); ok {
		body = strings.NewReader(text)
	}

	outReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("engine: build request: %w", err)
	}
	outReq.Header = req.Header.HTTP()
	outReq.Header.Del("Content-Length")
	if incoming.Host != "" {
		outReq.Header.Set("X-Forwarded-Host", incoming.Host)
		outReq.Header.Set("X-Forwarded-Proto", incoming.Scheme)
	}

	return e.do(outReq)
}

// GetSession asks the engine for the session identified by headers.
// A 401 or a JSON null body means no session.
func (e *HTTPEngine) GetSession(ctx context.Context, headers Header) (*Session, error) {
	resp, err := e.call(ctx, http.MethodGet, getSessionEndpoint, headers)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.Status == http.StatusUnauthorized:
		return nil, nil
	case resp.Status < 200 || resp.Status >= 300:
		return nil, &StatusError{Op: "get-session", Status: resp.Status}
	}

	payload := resp.Body.OrEmpty()
	if strings.TrimSpace(payload) == "" {
		return nil, nil
	}
	if !gjson.Valid(payload) {
		return nil, ErrInvalidPayload
	}

	parsed := gjson.Parse(payload)
	if parsed.Type == gjson.Null {
		return nil, nil
	}

	session := &Session{
		Session: asObject(parsed.Get("session")),
		User:    asObject(parsed.Get("user")),
	}
	if !session.Authenticated() {
		return nil, nil
	}
	return session, nil
}

// SignOut ends the session identified by headers.
func (e *HTTPEngine) SignOut(ctx context.Context, headers Header) (SignOutResult, error) {
	resp, err := e.call(ctx, http.MethodPost, signOutEndpoint, headers)
	if err != nil {
		return SignOutResult{}, err
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return SignOutResult{}, &StatusError{Op: "sign-out", Status: resp.Status}
	}

	payload := resp.Body.OrEmpty()
	if payload == "" {
		return SignOutResult{Success: true}, nil
	}
	if !gjson.Valid(payload) {
		return SignOutResult{}, ErrInvalidPayload
	}
	return SignOutResult{Success: gjson.Get(payload, "success").Bool()}, nil
}

func (e *HTTPEngine) call(ctx context.Context, method, endpoint string, headers Header) (*Response, error) {
	target := e.resolve(e.authPath + endpoint)

	req, err := http.NewRequestWithContext(ctx, method, target.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("engine: build request: %w", err)
	}
	req.Header = headers.HTTP()
	req.Header.Del("Content-Length")
	req.Header.Set("Accept", "application/json")

	return e.do(req)
}

func (e *HTTPEngine) do(req *http.Request) (*Response, error) {
	done, err := e.breaker.Allow()
	if err != nil {
		e.logger.Warn("engine call rejected by circuit breaker", logging.Fields{"url": req.URL.Path})
		return nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("engine: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			e.logger.Debug("failed to close engine response body", logging.Fields{"reason": closeErr.Error()})
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxEngineResponseSize+1))
	if err != nil {
		done(err)
		return nil, fmt.Errorf("engine: read response: %w", err)
	}
	if len(raw) > maxEngineResponseSize {
		done(ErrResponseTooLarge)
		e.logger.Warn("engine response exceeds read limit", logging.Fields{
			"url":    req.URL.Path,
			"limit":  maxEngineResponseSize,
			"status": resp.StatusCode,
		})
		return nil, fmt.Errorf("%w: more than %d bytes from %s", ErrResponseTooLarge, maxEngineResponseSize, req.URL.Path)
	}

	if ShouldCountAsFailure(resp.StatusCode, nil) {
		done(&StatusError{Op: req.URL.Path, Status: resp.StatusCode})
	} else {
		done(nil)
	}

	out := &Response{
		Status: resp.StatusCode,
		Header: HeaderFrom(resp.Header),
		Body:   mo.None[string](),
	}
	out.Header.Del("content-length")
	if len(raw) > 0 {
		out.Body = mo.Some(string(raw))
	}

	return out, nil
}

func (e *HTTPEngine) resolve(path string) *url.URL {
	target := *e.baseURL
	target.Path = strings.TrimRight(e.baseURL.Path, "/") + path
	target.RawPath = ""
	target.RawQuery = ""
	return &target
}

func asObject(result gjson.Result) map[string]any {
	if !result.IsObject() {
		return nil
	}
	obj, ok := result.Value().(map[string]any)
	if !ok {
		return nil
	}
	return obj
}

var _ Engine = (*HTTPEngine)(nil)
