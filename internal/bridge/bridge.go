// Package bridge translates host-framework requests aimed at the auth mount
// into engine requests, dispatches them, and writes the engine's reply back.
// Requests outside the mount pass through untouched.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/mo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/omarluq/auth-relay/internal/config"
	"github.com/omarluq/auth-relay/internal/engine"
	"github.com/omarluq/auth-relay/internal/logging"
	"github.com/omarluq/auth-relay/internal/metrics"
	"github.com/omarluq/auth-relay/internal/ratelimit"
	"github.com/omarluq/auth-relay/internal/validate"
)

// TracerName names the tracer used for engine dispatch spans.
const TracerName = "github.com/omarluq/auth-relay/internal/bridge"

// Limiter is the rate limiter consulted before dispatch.
type Limiter interface {
	IsRateLimited(identifier string, cfg ratelimit.Config) bool
	Info(identifier string, cfg ratelimit.Config) ratelimit.Info
}

// Outcome is what Process decided for one request.
type Outcome struct {
	// Response is nil when the engine produced no reply.
	Response *engine.Response
	// Matched is false when the request was outside the auth mount.
	Matched bool
}

// Bridge is safe for concurrent use. Config is read from the runtime on
// every request so hot reloads apply immediately.
type Bridge struct {
	engine       engine.Engine
	runtime      config.RuntimeConfig
	limiter      Limiter
	logger       *logging.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	errorHandler ErrorHandler
	now          func() time.Time
	validator    atomic.Pointer[validatorEntry]
}

type validatorEntry struct {
	cfg *config.Config
	v   *validate.Validator
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLimiter enables rate limiting through l.
func WithLimiter(l Limiter) Option {
	return func(b *Bridge) {
		b.limiter = l
	}
}

// WithLogger routes translation and dispatch logs through logger.
func WithLogger(logger *logging.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics records outcomes and dispatch latency on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// WithTracerProvider overrides the global OpenTelemetry provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(b *Bridge) {
		b.tracer = tp.Tracer(TracerName)
	}
}

// WithErrorHandler replaces DefaultErrorHandler on the net/http binding.
func WithErrorHandler(h ErrorHandler) Option {
	return func(b *Bridge) {
		if h != nil {
			b.errorHandler = h
		}
	}
}

// WithClock overrides time.Now for Retry-After computation.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		b.now = now
	}
}

// New creates a Bridge in front of eng.
func New(eng engine.Engine, runtime config.RuntimeConfig, opts ...Option) (*Bridge, error) {
	if eng == nil {
		return nil, ErrNoEngine
	}
	if runtime == nil {
		return nil, ErrNoRuntime
	}

	b := &Bridge{
		engine:       eng,
		runtime:      runtime,
		logger:       logging.Nop(),
		tracer:       otel.Tracer(TracerName),
		errorHandler: DefaultErrorHandler,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Config returns the live config snapshot.
func (b *Bridge) Config() *config.Config {
	return b.runtime.Get()
}

// Process runs one request through path matching, rate limiting,
// translation and dispatch.
func (b *Bridge) Process(ctx context.Context, n Native) (Outcome, error) {
	if r, ok := n.(RoutedRequest); ok && r.Request == nil {
		return Outcome{}, errNilRequest
	}

	cfg := b.runtime.Get()
	v := b.validatorFor(cfg)
	f := extract(n)
	host := v.ValidateHostHeader(f.host)

	if f.path == "" {
		f.path = rawPath(f.target, host)
	}
	if !MatchesAuthPath(f.path, cfg.Bridge.AuthPath()) {
		b.observe(metrics.OutcomePassthrough)
		return Outcome{}, nil
	}

	if err := b.checkRateLimit(f.header, cfg.Bridge.RateLimit()); err != nil {
		b.observe(metrics.OutcomeRateLimited)
		return Outcome{Matched: true}, err
	}

	req, err := b.translate(f, host, cfg, v)
	if err != nil {
		b.observe(metrics.OutcomeError)
		return Outcome{Matched: true}, err
	}

	resp, err := b.dispatch(ctx, req, cfg.Bridge.GetRequestTimeout())
	if err != nil {
		b.logger.Error("Authentication engine error", err, logging.Fields{
			"errorName": logging.ErrorName(err),
			"method":    req.Method,
			"path":      f.path,
		})
		b.observe(metrics.OutcomeError)
		return Outcome{Matched: true}, err
	}

	if resp == nil {
		b.observe(metrics.OutcomeNotFound)
	} else {
		b.observe(metrics.OutcomeDispatched)
	}
	return Outcome{Matched: true, Response: resp}, nil
}

func (b *Bridge) checkRateLimit(header http.Header, cfg ratelimit.Config) error {
	if b.limiter == nil || !cfg.Enabled {
		return nil
	}

	id := ClientIdentifier(header)
	if !b.limiter.IsRateLimited(id, cfg) {
		return nil
	}

	info := b.limiter.Info(id, cfg)
	return &RateLimitError{Identifier: id, RetryAfter: info.RetryAfter(b.now())}
}

// translate builds the canonical engine request.
func (b *Bridge) translate(f fields, host string, cfg *config.Config, v *validate.Validator) (*engine.Request, error) {
	// The length limit applies to the request target, not scheme and host.
	target, err := v.ValidateURL(f.target)
	if err != nil {
		return nil, err
	}
	absolute := f.protocol + "://" + host + target

	headers, err := v.ValidateHeaders(f.header)
	if err != nil {
		return nil, err
	}
	headers.Set("host", host)

	req := &engine.Request{
		Header: headers,
		Body:   mo.None[string](),
		Method: f.method,
		URL:    absolute,
	}

	if f.method == http.MethodGet || f.method == http.MethodHead || cfg.Bridge.DisableBodyParser {
		return req, nil
	}
	if f.body == nil || f.body == http.NoBody {
		return req, nil
	}

	// One byte past the limit is enough for the validator to reject it.
	raw, err := io.ReadAll(io.LimitReader(f.body, v.MaxBodySize()+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadBody, err)
	}

	body, err := v.ValidateRequestBody(raw, headers.Get("content-type"))
	if err != nil {
		return nil, err
	}
	req.Body = body
	return req, nil
}

func (b *Bridge) dispatch(ctx context.Context, req *engine.Request, timeout time.Duration) (*engine.Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx, span := b.tracer.Start(ctx, "auth.engine.handle",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", req.URL),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := b.engine.Handle(ctx, req)

	status := 0
	if resp != nil {
		status = resp.Status
	}
	if b.metrics != nil {
		b.metrics.ObserveDispatch(req.Method, status, time.Since(start))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, logging.ErrorName(err))
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
	return resp, nil
}

// validatorFor reuses one validator per config snapshot.
func (b *Bridge) validatorFor(cfg *config.Config) *validate.Validator {
	if e := b.validator.Load(); e != nil && e.cfg == cfg {
		return e.v
	}
	v := validate.New(cfg.Bridge.Validation(), b.logger)
	b.validator.Store(&validatorEntry{cfg: cfg, v: v})
	return v
}

func (b *Bridge) observe(outcome string) {
	if b.metrics != nil {
		b.metrics.ObserveRequest(outcome)
	}
}

// IsRateLimited reports whether err is a rate-limit rejection.
func IsRateLimited(err error) bool {
	return errors.Is(err, ratelimit.ErrRateLimitExceeded)
}
