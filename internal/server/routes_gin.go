package server

import (
	"net/http"
	"time"

	ginCors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/omarluq/auth-relay/internal/auth"
	"github.com/omarluq/auth-relay/internal/bridge"
	"github.com/omarluq/auth-relay/internal/config"
	"github.com/omarluq/auth-relay/internal/httpx"
)

// NewGinHandler creates the gin router with the same routes as NewChiHandler.
func NewGinHandler(cfg *config.Config, deps Deps) http.Handler {
	a := newAPI(cfg, deps)
	r := gin.New()

	r.Use(ginRequestContext(deps.Logger), gin.Recovery())
	if cfg.Bridge.CORSEnabled() {
		r.Use(ginCors.New(GinCORSConfig(cfg.Bridge.TrustedOrigins)))
	}
	r.Use(bridge.GinErrorRenderer())
	if !cfg.Bridge.DisableMiddleware {
		r.Use(deps.Bridge.GinMiddleware())
	} else {
		deps.Logger.Info().Msg("bridge middleware disabled, auth mount not served")
	}

	r.GET("/health", func(c *gin.Context) {
		status, body := a.health()
		c.JSON(status, body)
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	r.GET("/me", auth.GinMiddleware(a.chain, auth.Protected), a.ginMe)
	r.POST("/me/sign-out", auth.GinMiddleware(a.chain, auth.Protected), a.ginSignOut)
	r.GET("/admin/ping", auth.GinMiddleware(a.chain, auth.RequireRoles(AdminRole)), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	if a.adminEnabled() {
		admin := r.Group("/admin/ratelimit", auth.GinAPIKeyMiddleware(auth.NewAPIKeyAuthenticator(cfg.Server.AdminAPIKey)))
		admin.GET("/stats", func(c *gin.Context) {
			c.JSON(http.StatusOK, a.deps.Limiter.Stats())
		})
		admin.GET("/:id", func(c *gin.Context) {
			c.JSON(http.StatusOK, a.limiterInfo(c.Param("id")))
		})
		admin.DELETE("/:id", func(c *gin.Context) {
			a.deps.Limiter.Reset(c.Param("id"))
			c.Status(http.StatusNoContent)
		})
	}

	return r
}

// ginRequestContext is LoggerMiddleware, RequestIDMiddleware and
// AccessLogMiddleware in one gin handler.
func ginRequestContext(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx := httpx.AddRequestID(base.WithContext(c.Request.Context()), c.GetHeader(httpx.HeaderRequestID))
		c.Request = c.Request.WithContext(ctx)
		c.Header(httpx.HeaderRequestID, httpx.GetRequestID(ctx))

		c.Next()

		httpx.LogCompletion(zerolog.Ctx(ctx), c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (a *api) ginMe(c *gin.Context) {
	body, ok := a.me(c.Request.Context())
	if !ok {
		auth.WriteAccessError(c.Writer, auth.ErrUnauthenticated)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (a *api) ginSignOut(c *gin.Context) {
	result, err := a.signOut(c.Request)
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("sign-out failed")
		writeSignOutError(c.Writer, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
