package validate

import (
	"regexp"

	"github.com/omarluq/auth-relay/internal/logging"
)

var (
	// Two dots, literal or percent-encoded in any mix, followed by a
	// literal or encoded path separator.
	traversalPattern = regexp.MustCompile(`(?i)(\.|%2e){2}(/|\\|%2f|%5c)`)

	// Encoded NUL, LF and CR.
	controlSequencePattern = regexp.MustCompile(`(?i)%00|%0a|%0d`)
)

// ValidateURL checks a request target for traversal, encoded control
// characters and excessive length, in that order. The input is returned
// unchanged when it passes.
func (v *Validator) ValidateURL(raw string) (string, error) {
	if raw == "" {
		v.logger.Security("Missing request URL", nil)
		return "", ErrURLRequired
	}

	if traversalPattern.MatchString(raw) {
		v.logger.Security("Path traversal attempt detected", logging.Fields{"url": raw})
		return "", ErrPathTraversal
	}

	if controlSequencePattern.MatchString(raw) {
		v.logger.Security("Suspicious characters in URL", logging.Fields{"url": raw})
		return "", ErrInvalidURLFormat
	}

	if len(raw) > MaxURLLength {
		v.logger.Security("URL too long", logging.Fields{
			"length":    len(raw),
			"maxLength": MaxURLLength,
		})
		return "", ErrURLTooLong
	}

	return raw, nil
}
