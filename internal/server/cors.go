package server

import (
	"net/http"

	ginCors "github.com/gin-contrib/cors"
	"github.com/rs/cors"
	"github.com/samber/lo"
)

var (
	corsMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}
	corsHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Cookie", "X-Request-ID"}
)

// NewCORS builds the net/http CORS handler for the configured trusted
// origins. Credentials are allowed so session cookies travel cross-origin.
func NewCORS(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   corsMethods,
		AllowedHeaders:   corsHeaders,
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
	})
}

// GinCORSConfig is the gin-contrib equivalent of NewCORS.
func GinCORSConfig(origins []string) ginCors.Config {
	cfg := ginCors.DefaultConfig()
	if lo.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = corsMethods
	cfg.AllowHeaders = corsHeaders
	cfg.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	cfg.AllowCredentials = true
	return cfg
}
