package audit

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts client ip from common headers or RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// FromRequest starts an entry carrying the caller's address and user agent.
func FromRequest(r *http.Request, actor, role, action string) Entry {
	entry := Entry{Actor: actor, Role: role, Action: action}
	if r != nil {
		entry.IP = ClientIP(r)
		entry.UserAgent = r.UserAgent()
	}
	return entry
}
