package httpx

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// LoggerMiddleware puts base into every request context so zerolog.Ctx
// finds it downstream. Place it before RequestIDMiddleware.
func LoggerMiddleware(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(base.WithContext(r.Context())))
		})
	}
}

// AccessLogMiddleware logs one line per request at a level picked by status.
func AccessLogMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}

			next.ServeHTTP(rec, r)

			LogCompletion(zerolog.Ctx(r.Context()), r.Method, r.URL.Path, rec.Status, time.Since(start))
		})
	}
}

// LogCompletion writes the access line shared by both bindings.
func LogCompletion(logger *zerolog.Logger, method, path string, status int, elapsed time.Duration) {
	duration := FormatDuration(elapsed)
	msg := statusSymbol(status) + " " + http.StatusText(status) + " (" + duration + ")"

	var event *zerolog.Event
	switch {
	case status >= 500:
		event = logger.Error()
	case status >= 400:
		event = logger.Warn()
	default:
		event = logger.Info()
	}
	event.Str("method", method).
		Str("path", path).
		Int("status", status).
		Str("duration", duration).
		Msg(msg)
}

// StatusRecorder captures the status written through it.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
	wrote  bool
}

// WriteHeader records code once.
func (r *StatusRecorder) WriteHeader(code int) {
	if !r.wrote {
		r.Status = code
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *StatusRecorder) Write(data []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(data)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *StatusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func statusSymbol(status int) string {
	switch {
	case status >= 500:
		return "✗"
	case status >= 400:
		return "⚠"
	default:
		return "✓"
	}
}

// FormatDuration renders d in µs, ms or s depending on magnitude.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	d = d.Round(time.Microsecond)
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		return d.Truncate(time.Second).String()
	}
}
