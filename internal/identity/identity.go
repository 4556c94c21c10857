// Package identity normalizes the user keys the chat service is keyed by.
package identity

import (
	"net"
	"net/http"
	"strings"
)

// Normalize turns a client-supplied email into the key used for sessions,
// the conversation log and per-identity locking. Case and surrounding
// whitespace are not significant.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IPFromRequest returns a normalized remote IP for rate limiting and tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
