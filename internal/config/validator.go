package config

import (
	"mime"
	"net"
	"net/url"
	"strings"
)

var validFrameworks = map[string]bool{
	FrameworkHTTP: true,
	FrameworkGin:  true,
}

var validLogLevels = map[string]bool{
	"":        true,
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
	"none":    true,
	"off":     true,
}

var validLogFormats = map[string]bool{
	"":        true,
	"json":    true,
	"console": true,
	"pretty":  true,
}

// Validate checks the configuration. Every problem found is reported in a
// single *ValidationError.
func (c *Config) Validate() error {
	errs := &ValidationError{}

	validateServer(c, errs)
	validateEngine(c, errs)
	validateBridge(c, errs)
	validateLogging(c, errs)

	return errs.ToError()
}

func validateServer(c *Config, errs *ValidationError) {
	if c.Server.Listen == "" {
		errs.Add("server.listen is required")
	} else {
		validateListenAddress(c.Server.Listen, errs)
	}

	if !validFrameworks[c.Server.GetFramework()] {
		errs.Addf("server.framework is invalid (got %q, valid: http, gin)", c.Server.Framework)
	}

	if c.Server.ShutdownTimeoutMS < 0 {
		errs.Add("server.shutdown_timeout_ms must be >= 0")
	}
}

func validateListenAddress(addr string, errs *ValidationError) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		errs.Addf("server.listen must be in host:port format (got %q)", addr)
		return
	}

	if host != "" && net.ParseIP(host) == nil && strings.ContainsAny(host, " \t\n") {
		errs.Add("server.listen host contains invalid characters")
	}

	if port == "" {
		errs.Add("server.listen port is required")
	}
}

func validateEngine(c *Config, errs *ValidationError) {
	if c.Engine.BaseURL == "" {
		errs.Add("engine.base_url is required")
	} else if u, err := url.Parse(c.Engine.BaseURL); err != nil || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		errs.Addf("engine.base_url must be an absolute http(s) URL (got %q)", c.Engine.BaseURL)
	}

	if c.Engine.AuthPath != "" && !strings.HasPrefix(c.Engine.AuthPath, "/") {
		errs.Addf("engine.auth_path must start with / (got %q)", c.Engine.AuthPath)
	}

	if c.Engine.TimeoutMS < 0 {
		errs.Add("engine.timeout_ms must be >= 0")
	}

	cb := c.Engine.CircuitBreaker
	if cb.FailureThreshold < 0 {
		errs.Add("engine.circuit_breaker.failure_threshold must be >= 0")
	}
	if cb.OpenDurationMS < 0 {
		errs.Add("engine.circuit_breaker.open_duration_ms must be >= 0")
	}
	if cb.HalfOpenProbes < 0 {
		errs.Add("engine.circuit_breaker.half_open_probes must be >= 0")
	}

	sc := c.Engine.SessionCache
	if sc.TTLMS < 0 {
		errs.Add("engine.session_cache.ttl_ms must be >= 0")
	}
	if sc.MaxCost < 0 {
		errs.Add("engine.session_cache.max_cost must be >= 0")
	}
	if sc.NumCounters < 0 {
		errs.Add("engine.session_cache.num_counters must be >= 0")
	}
}

func validateBridge(c *Config, errs *ValidationError) {
	b := &c.Bridge

	if b.MaxBodySize < 0 {
		errs.Add("bridge.max_body_size must be >= 0")
	}
	if b.RequestTimeoutMS != nil && *b.RequestTimeoutMS < 0 {
		errs.Add("bridge.request_timeout_ms must be >= 0")
	}
	if b.RateLimitWindowMS < 0 {
		errs.Add("bridge.rate_limit_window_ms must be >= 0")
	}
	if strings.ContainsAny(b.GlobalPrefix, " ?#") {
		errs.Addf("bridge.global_prefix contains invalid characters (got %q)", b.GlobalPrefix)
	}

	for i, ct := range b.AllowedContentTypes {
		if _, _, err := mime.ParseMediaType(ct); err != nil {
			errs.Addf("bridge.allowed_content_types[%d] is not a media type (got %q)", i, ct)
		}
	}

	for i, origin := range b.TrustedOrigins {
		if origin == "*" {
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs.Addf("bridge.trusted_origins[%d] must be an origin like https://app.example.com (got %q)", i, origin)
		}
	}
}

func validateLogging(c *Config, errs *ValidationError) {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs.Addf("logging.level is invalid (got %q, valid: debug, info, warn, error, none)", c.Logging.Level)
	}
	if !validLogFormats[c.Logging.Format] {
		errs.Addf("logging.format is invalid (got %q, valid: json, console, pretty)", c.Logging.Format)
	}
}
