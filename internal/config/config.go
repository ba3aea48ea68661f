// Package config provides configuration loading, validation, and hot-reload for auth-relay.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/omarluq/auth-relay/internal/cache"
	"github.com/omarluq/auth-relay/internal/engine"
	"github.com/omarluq/auth-relay/internal/logging"
	"github.com/omarluq/auth-relay/internal/ratelimit"
	"github.com/omarluq/auth-relay/internal/validate"
)

// RuntimeConfig gives access to the live configuration.
// Components that must observe reloads hold this instead of a *Config.
type RuntimeConfig interface {
	Get() *Config
}

// Supported HTTP bindings.
const (
	FrameworkHTTP = "http"
	FrameworkGin  = "gin"
)

// Defaults for the bridge section.
const (
	DefaultAuthPath         = "/api/auth"
	DefaultRequestTimeoutMS = 30000
	DefaultListen           = "127.0.0.1:8788"
	DefaultShutdownTimeout  = 30 * time.Second
)

// Config is the complete auth-relay configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Engine  EngineConfig  `yaml:"engine" toml:"engine"`
	Bridge  BridgeConfig  `yaml:"bridge" toml:"bridge"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// ServerConfig configures the host HTTP server.
type ServerConfig struct {
	// Listen is the host:port to bind.
	Listen string `yaml:"listen" toml:"listen"`
	// Framework selects the binding: "http" (net/http with chi) or "gin".
	Framework string `yaml:"framework" toml:"framework"`
	// AdminAPIKey protects the /admin endpoints. Empty disables them.
	AdminAPIKey string `yaml:"admin_api_key" toml:"admin_api_key"`
	// ShutdownTimeoutMS bounds graceful shutdown.
	ShutdownTimeoutMS int `yaml:"shutdown_timeout_ms" toml:"shutdown_timeout_ms"`
	// EnableHTTP2 serves cleartext HTTP/2 alongside HTTP/1.1.
	EnableHTTP2 bool `yaml:"enable_http2" toml:"enable_http2"`
}

// GetFramework returns the binding name, defaulting to FrameworkHTTP.
func (s *ServerConfig) GetFramework() string {
	if s.Framework == "" {
		return FrameworkHTTP
	}
	return strings.ToLower(s.Framework)
}

// GetShutdownTimeout returns the graceful shutdown bound.
func (s *ServerConfig) GetShutdownTimeout() time.Duration {
	if s.ShutdownTimeoutMS <= 0 {
		return DefaultShutdownTimeout
	}
	return time.Duration(s.ShutdownTimeoutMS) * time.Millisecond
}

// EngineConfig points at the authentication engine.
type EngineConfig struct {
	// BaseURL is the engine's origin, e.g. http://127.0.0.1:3000.
	BaseURL string `yaml:"base_url" toml:"base_url"`
	// AuthPath is the engine-side auth mount. Default /api/auth.
	AuthPath       string               `yaml:"auth_path" toml:"auth_path"`
	CircuitBreaker engine.BreakerConfig `yaml:"circuit_breaker" toml:"circuit_breaker"`
	// SessionCache memoizes authenticated get-session results. Off by default.
	SessionCache cache.Config `yaml:"session_cache" toml:"session_cache"`
	// TimeoutMS bounds each HTTP call to the engine. Zero uses the client default.
	TimeoutMS int `yaml:"timeout_ms" toml:"timeout_ms"`
}

// GetTimeout returns the engine client timeout, or zero for the default.
func (e *EngineConfig) GetTimeout() time.Duration {
	if e.TimeoutMS <= 0 {
		return 0
	}
	return time.Duration(e.TimeoutMS) * time.Millisecond
}

// BridgeConfig configures request translation, hardening, and rate limiting.
type BridgeConfig struct {
	// EnableRateLimit defaults to true when unset.
	EnableRateLimit *bool `yaml:"enable_rate_limit" toml:"enable_rate_limit"`
	// RateLimitMax defaults to 100 when unset. Zero or negative denies every request.
	RateLimitMax *int `yaml:"rate_limit_max" toml:"rate_limit_max"`
	// RequestTimeoutMS bounds engine dispatch. Defaults to 30000; zero disables.
	RequestTimeoutMS *int `yaml:"request_timeout_ms" toml:"request_timeout_ms"`
	// GlobalPrefix is prepended to the auth path, e.g. "v1" gives /v1/api/auth.
	GlobalPrefix        string   `yaml:"global_prefix" toml:"global_prefix"`
	TrustedOrigins      []string `yaml:"trusted_origins" toml:"trusted_origins"`
	AllowedContentTypes []string `yaml:"allowed_content_types" toml:"allowed_content_types"`
	// MaxBodySize is in bytes. Default 1 MiB.
	MaxBodySize int64 `yaml:"max_body_size" toml:"max_body_size"`
	// RateLimitWindowMS defaults to 900000 (15 minutes).
	RateLimitWindowMS int `yaml:"rate_limit_window_ms" toml:"rate_limit_window_ms"`

	DisableMiddleware         bool `yaml:"disable_middleware" toml:"disable_middleware"`
	DisableExceptionFilter    bool `yaml:"disable_exception_filter" toml:"disable_exception_filter"`
	DisableTrustedOriginsCors bool `yaml:"disable_trusted_origins_cors" toml:"disable_trusted_origins_cors"`
	DisableBodyParser         bool `yaml:"disable_body_parser" toml:"disable_body_parser"`
}

// IsRateLimitEnabled reports whether rate limiting applies.
func (b *BridgeConfig) IsRateLimitEnabled() bool {
	if b.EnableRateLimit == nil {
		return true
	}
	return *b.EnableRateLimit
}

// GetRateLimitMax returns the configured max or ratelimit.DefaultMax.
func (b *BridgeConfig) GetRateLimitMax() int {
	if b.RateLimitMax == nil {
		return ratelimit.DefaultMax
	}
	return *b.RateLimitMax
}

// GetRateLimitWindow returns the window length.
func (b *BridgeConfig) GetRateLimitWindow() time.Duration {
	if b.RateLimitWindowMS <= 0 {
		return ratelimit.DefaultWindow
	}
	return time.Duration(b.RateLimitWindowMS) * time.Millisecond
}

// RateLimit returns the limiter config for a single check.
func (b *BridgeConfig) RateLimit() ratelimit.Config {
	return ratelimit.Config{
		Enabled: b.IsRateLimitEnabled(),
		Window:  b.GetRateLimitWindow(),
		Max:     b.GetRateLimitMax(),
	}
}

// GetRequestTimeout returns the dispatch deadline, or zero for none.
func (b *BridgeConfig) GetRequestTimeout() time.Duration {
	ms := DefaultRequestTimeoutMS
	if b.RequestTimeoutMS != nil {
		ms = *b.RequestTimeoutMS
	}
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// GetMaxBodySize returns the body limit in bytes.
func (b *BridgeConfig) GetMaxBodySize() int64 {
	if b.MaxBodySize <= 0 {
		return validate.DefaultMaxBodySize
	}
	return b.MaxBodySize
}

// AuthPath returns the mount the bridge intercepts: "/api/auth", or
// "/<prefix>/api/auth" when a global prefix is set.
func (b *BridgeConfig) AuthPath() string {
	prefix := strings.Trim(b.GlobalPrefix, "/")
	if prefix == "" {
		return DefaultAuthPath
	}
	return "/" + prefix + DefaultAuthPath
}

// Validation returns the request validator settings.
func (b *BridgeConfig) Validation() validate.Config {
	return validate.Config{
		AllowedContentTypes: b.AllowedContentTypes,
		MaxBodySize:         b.GetMaxBodySize(),
	}
}

// CORSEnabled reports whether trusted-origin CORS should be installed.
func (b *BridgeConfig) CORSEnabled() bool {
	return !b.DisableTrustedOriginsCors && len(b.TrustedOrigins) > 0
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error, none. Default error.
	Level string `yaml:"level" toml:"level"`
	// Format is json, console or pretty.
	Format string `yaml:"format" toml:"format"`
	// Output is stdout, stderr or a file path.
	Output string `yaml:"output" toml:"output"`
	Pretty bool   `yaml:"pretty" toml:"pretty"`
}

// ParseLevel returns the configured threshold.
func (l *LoggingConfig) ParseLevel() logging.Level {
	return logging.ParseLevel(l.Level)
}

// Options returns the sink options.
func (l *LoggingConfig) Options() logging.Options {
	return logging.Options{
		Level:  l.Level,
		Format: l.Format,
		Output: l.Output,
		Pretty: l.Pretty,
	}
}

// String summarizes the config for startup logs. Secrets are omitted.
func (c *Config) String() string {
	return fmt.Sprintf("listen=%s framework=%s engine=%s auth_path=%s rate_limit=%t",
		c.Server.Listen, c.Server.GetFramework(), c.Engine.BaseURL, c.Bridge.AuthPath(), c.Bridge.IsRateLimitEnabled())
}
