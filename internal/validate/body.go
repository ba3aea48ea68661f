package validate

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/samber/mo"

	"github.com/omarluq/auth-relay/internal/logging"
)

// Injection signals in request bodies. A match is logged, never rejected:
// the engine decides what to do with the content.
var maliciousBodyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)eval\s*\(`),
	regexp.MustCompile(`(?i)Function\s*\(`),
}

// ValidateRequestBody serializes body and checks it against the content-type
// allow-list and the size limit. Strings and byte slices pass through as-is;
// other values are JSON-encoded. An absent or empty body yields None.
// The content type is compared by media type, ignoring parameters and case.
func (v *Validator) ValidateRequestBody(body any, contentType string) (mo.Option[string], error) {
	if isEmptyBody(body) {
		return mo.None[string](), nil
	}

	if contentType != "" {
		if _, ok := v.allowed[normalizeMediaType(contentType)]; !ok {
			v.logger.Security("Invalid content type detected", logging.Fields{
				"contentType":  contentType,
				"allowedTypes": v.allowedNames,
			})
			return mo.None[string](), ErrInvalidContentType
		}
	}

	text, err := serializeBody(body)
	if err != nil {
		v.logger.Error("Failed to serialize request body", err, nil)
		return mo.None[string](), fmt.Errorf("%w: %w", ErrInvalidBodyFormat, err)
	}

	if int64(len(text)) > v.maxBodySize {
		v.logger.Security("Request body size exceeds limit", logging.Fields{
			"actualSize": len(text),
			"maxSize":    v.maxBodySize,
		})
		return mo.None[string](), ErrBodyTooLarge
	}

	for _, pattern := range maliciousBodyPatterns {
		if pattern.MatchString(text) {
			v.logger.Security("Potentially malicious content in request body", logging.Fields{
				"pattern": pattern.String(),
			})
			break
		}
	}

	return mo.Some(text), nil
}

func isEmptyBody(body any) bool {
	switch b := body.(type) {
	case nil:
		return true
	case string:
		return b == ""
	case []byte:
		return len(b) == 0
	case json.RawMessage:
		return len(b) == 0
	default:
		return false
	}
}

func serializeBody(body any) (string, error) {
	switch b := body.(type) {
	case string:
		return b, nil
	case []byte:
		return string(b), nil
	case json.RawMessage:
		return string(b), nil
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}
}
