package validate

import (
	"regexp"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/omarluq/auth-relay/internal/engine"
	"github.com/omarluq/auth-relay/internal/logging"
)

var (
	hostPattern = regexp.MustCompile(
		`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*(?::[0-9]{1,5})?$` +
			`|^[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}(?::[0-9]{1,5})?$`)

	suspiciousHostPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[<>"']`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)data:`),
		regexp.MustCompile(`(?i)vbscript:`),
	}

	// RFC 7230 token.
	headerNamePattern = regexp.MustCompile("^[a-zA-Z0-9!#$&'*+.^_`|~-]+$")
)

// ValidateHostHeader returns the first Host value when it is a well-formed
// hostname or IPv4 address with an optional port. Anything else, including a
// missing header, yields FallbackHost. It never fails.
func (v *Validator) ValidateHostHeader(values []string) string {
	raw := lo.FirstOrEmpty(values)
	if raw == "" {
		v.logger.Warn("Missing host header, using localhost fallback", nil)
		return FallbackHost
	}

	if !hostPattern.MatchString(raw) {
		v.logger.Security("Host header contains suspicious pattern", logging.Fields{"host": raw})
		return FallbackHost
	}

	for _, pattern := range suspiciousHostPatterns {
		if pattern.MatchString(raw) {
			v.logger.Security("Host header contains suspicious pattern", logging.Fields{
				"pattern": pattern.String(),
				"host":    raw,
			})
			return FallbackHost
		}
	}

	return raw
}

// ValidateHeaders returns the headers that pass name, size and injection
// checks, keyed by lower-cased name. Invalid entries are dropped; only an
// excessive header count fails the whole set. Entries are visited in sorted
// order so that names differing only in case resolve deterministically, the
// last one visited winning.
func (v *Validator) ValidateHeaders(headers map[string][]string) (engine.Header, error) {
	if len(headers) > MaxHeaderCount {
		v.logger.Security("Too many headers in request", logging.Fields{
			"count": len(headers),
			"max":   MaxHeaderCount,
		})
		return nil, ErrTooManyHeaders
	}

	names := lo.Keys(headers)
	slices.Sort(names)

	out := make(engine.Header, len(headers))
	for _, name := range names {
		values := headers[name]

		if len(name) > MaxHeaderNameLength || !headerNamePattern.MatchString(name) {
			v.logger.Security("Invalid header name detected", logging.Fields{"headerName": name})
			continue
		}

		joined := strings.Join(values, ",")
		if len(joined) > MaxHeaderValueLength {
			v.logger.Security("Header value too large", logging.Fields{
				"headerName": name,
				"size":       len(joined),
				"maxSize":    MaxHeaderValueLength,
			})
			continue
		}

		if strings.ContainsAny(joined, "\r\n") {
			v.logger.Security("Header injection attempt detected", logging.Fields{
				"headerName": name,
				"value":      joined,
			})
			continue
		}

		out[strings.ToLower(name)] = append([]string(nil), values...)
	}

	return out, nil
}
