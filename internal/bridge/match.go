package bridge

import (
	"net/http"
	"strings"
)

const unknownClient = "unknown"

// MatchesAuthPath reports whether path is mount or lies beneath it.
// Matching is by whole segment: /api/authx does not match /api/auth.
func MatchesAuthPath(path, mount string) bool {
	mount = strings.TrimSuffix(mount, "/")
	if !strings.HasPrefix(path, mount) {
		return false
	}
	rest := path[len(mount):]
	return rest == "" || rest[0] == '/'
}

// ClientIdentifier picks the rate-limit key for a request: the first
// X-Forwarded-For entry, then X-Real-IP, then CF-Connecting-IP.
func ClientIdentifier(header http.Header) string {
	if xff := header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	for _, name := range []string{"X-Real-IP", "CF-Connecting-IP"} {
		if v := strings.TrimSpace(header.Get(name)); v != "" {
			return v
		}
	}
	return unknownClient
}
