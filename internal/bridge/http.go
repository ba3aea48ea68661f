package bridge

import (
	"errors"
	"net/http"

	"github.com/omarluq/auth-relay/internal/engine"
	"github.com/omarluq/auth-relay/internal/httpx"
	"github.com/omarluq/auth-relay/internal/logging"
)

// Middleware mounts the bridge on a net/http chain.
func (b *Bridge) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out, err := b.Process(r.Context(), RoutedRequest{Request: r})
		if err != nil {
			b.fail(w, r, err)
			return
		}
		if !out.Matched {
			next.ServeHTTP(w, r)
			return
		}
		WriteResponse(w, out.Response)
	})
}

// Handler serves only the auth mount; anything else gets a 404.
func (b *Bridge) Handler() http.Handler {
	return b.Middleware(http.NotFoundHandler())
}

func (b *Bridge) fail(w http.ResponseWriter, r *http.Request, err error) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		httpx.WriteRateLimitError(w, rle.RetryAfter)
		return
	}

	if b.runtime.Get().Bridge.DisableExceptionFilter {
		b.logger.Error("Auth request failed", err, logging.Fields{"path": r.URL.Path})
		writeInternalError(w)
		return
	}
	b.errorHandler(w, r, err)
}

// WriteResponse copies resp onto w. A nil resp becomes 404 "Not Found".
func WriteResponse(w http.ResponseWriter, resp *engine.Response) {
	if resp == nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(NotFoundBody))
		return
	}

	dst := w.Header()
	for name, values := range resp.Header {
		key := http.CanonicalHeaderKey(name)
		for _, v := range values {
			dst.Add(key, v)
		}
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	if body, ok := resp.Body.Get(); ok {
		_, _ = w.Write([]byte(body))
	}
}
