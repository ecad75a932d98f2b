package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the originating address of r, preferring the first
// X-Forwarded-For hop, then X-Real-IP, then the socket peer without port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return PeerIP(r)
}

// PeerIP returns the socket peer address without port. Request headers cannot
// change it.
func PeerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
