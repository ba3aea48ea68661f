package bridge

import (
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Native is a request in one of the host shapes the bridge understands.
type Native interface {
	isNative()
}

// RoutedRequest is a net/http request whose path was already parsed by the
// router. Protocol is https when the connection is TLS.
type RoutedRequest struct {
	Request *http.Request
}

// RawRequest is a request seen as a raw target plus headers, with no parsed
// path and no protocol. The gin binding produces this shape.
type RawRequest struct {
	Header http.Header
	Body   io.Reader
	Method string
	Target string
	Host   string
}

func (RoutedRequest) isNative() {}
func (RawRequest) isNative()    {}

// RawFromHTTP builds a RawRequest from r, ignoring r's parsed URL.
func RawFromHTTP(r *http.Request) RawRequest {
	return RawRequest{
		Header: r.Header,
		Body:   r.Body,
		Method: r.Method,
		Target: requestTarget(r),
		Host:   r.Host,
	}
}

// fields is the part of a native request the bridge reads, independent of shape.
type fields struct {
	header   http.Header
	body     io.Reader
	method   string
	target   string
	path     string
	protocol string
	host     []string
}

// extract flattens n. The parsed path of a raw request is filled in later,
// once the host has been validated.
func extract(n Native) fields {
	var f fields
	switch req := n.(type) {
	case RoutedRequest:
		r := req.Request
		f = fields{
			header:   r.Header,
			body:     r.Body,
			method:   r.Method,
			target:   requestTarget(r),
			path:     r.URL.Path,
			protocol: "http",
			host:     hostValues(r.Host, r.Header),
		}
		if r.TLS != nil {
			f.protocol = "https"
		}
	case RawRequest:
		f = fields{
			header:   req.Header,
			body:     req.Body,
			method:   req.Method,
			target:   req.Target,
			protocol: "http",
			host:     hostValues(req.Host, req.Header),
		}
	}
	if f.method == "" {
		f.method = http.MethodGet
	}
	if f.header == nil {
		f.header = http.Header{}
	}
	return f
}

// rawPath recovers the path of target, resolved against http://host.
// An unparsable target is split on '?'.
func rawPath(target, host string) string {
	ref, err := url.Parse(target)
	if err != nil {
		path, _, _ := strings.Cut(target, "?")
		return path
	}
	base := &url.URL{Scheme: "http", Host: host, Path: "/"}
	return base.ResolveReference(ref).Path
}

func requestTarget(r *http.Request) string {
	if r.RequestURI != "" {
		return r.RequestURI
	}
	if r.URL != nil {
		return r.URL.RequestURI()
	}
	return ""
}

// net/http moves Host out of the header map.
func hostValues(host string, header http.Header) []string {
	if host != "" {
		return []string{host}
	}
	return header.Values("Host")
}
