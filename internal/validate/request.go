package validate

import (
	"github.com/samber/mo"

	"github.com/omarluq/auth-relay/internal/engine"
)

// RawInput is an unvalidated request as seen by a host framework.
type RawInput struct {
	Headers map[string][]string
	Body    any
	URL     string
	Method  string
}

// Result is the outcome of ValidateRequest.
type Result struct {
	Headers engine.Header
	Body    mo.Option[string]
	URL     mo.Option[string]
	Errors  []string
	Valid   bool
}

// ValidateRequest runs every check over in and collects failures instead of
// stopping at the first one. Body validation uses the validated
// content-type header when headers are present.
func (v *Validator) ValidateRequest(in RawInput) Result {
	res := Result{Body: mo.None[string](), URL: mo.None[string]()}

	if u, err := v.ValidateURL(in.URL); err != nil {
		res.Errors = append(res.Errors, Reason(err))
	} else {
		res.URL = mo.Some(u)
	}

	if in.Method == "" {
		res.Errors = append(res.Errors, Reason(ErrMethodRequired))
	}

	contentType := ""
	if in.Headers != nil {
		headers, err := v.ValidateHeaders(in.Headers)
		if err != nil {
			res.Errors = append(res.Errors, Reason(err))
		} else {
			res.Headers = headers
			contentType = headers.Get("content-type")
		}
	}

	if !isEmptyBody(in.Body) {
		body, err := v.ValidateRequestBody(in.Body, contentType)
		if err != nil {
			res.Errors = append(res.Errors, Reason(err))
		} else {
			res.Body = body
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}
