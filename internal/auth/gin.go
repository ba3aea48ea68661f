package auth

import (
	"github.com/gin-gonic/gin"
)

// GinMiddleware enforces policy on a gin route. On success the user map and
// session are stored under GinUserKey and GinSessionKey and on the request
// context.
func GinMiddleware(chain *Chain, policy Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := chain.Authorize(c.Request.Context(), RequestHeader(c.Request), policy).Get()
		if err != nil {
			_ = c.Error(err)
			WriteAccessError(c.Writer, err)
			c.Abort()
			return
		}

		if sess != nil {
			c.Set(GinUserKey, sess.User)
			c.Set(GinSessionKey, sess)
			c.Request = c.Request.WithContext(WithSession(c.Request.Context(), sess))
		}
		c.Next()
	}
}
