package bridge

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/omarluq/auth-relay/internal/httpx"
	"github.com/omarluq/auth-relay/internal/logging"
)

// GinMiddleware mounts the bridge on a gin engine. Requests are read in the
// raw shape: target, headers and body, with the path recovered from the target.
func (b *Bridge) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := b.Process(c.Request.Context(), RawFromHTTP(c.Request))
		if err != nil {
			b.ginFail(c, err)
			return
		}
		if !out.Matched {
			c.Next()
			return
		}
		WriteResponse(c.Writer, out.Response)
		c.Abort()
	}
}

// ginFail hands err to gin's error list with its status set but unwritten,
// so GinErrorRenderer (or any host renderer) can still produce a body.
func (b *Bridge) ginFail(c *gin.Context, err error) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		httpx.WriteRateLimitError(c.Writer, rle.RetryAfter)
		c.Abort()
		return
	}

	if b.runtime.Get().Bridge.DisableExceptionFilter {
		b.logger.Error("Auth request failed", err, logging.Fields{"path": c.Request.URL.Path})
		writeInternalError(c.Writer)
		c.Abort()
		return
	}

	c.Status(StatusFor(err))
	_ = c.Error(err)
	c.Abort()
}

// GinErrorRenderer writes the last context error with DefaultErrorHandler
// when nothing else has written a body. Install it before GinMiddleware.
func GinErrorRenderer() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		DefaultErrorHandler(c.Writer, c.Request, c.Errors.Last().Err)
	}
}
