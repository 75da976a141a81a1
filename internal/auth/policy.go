package auth

import (
	"net/http"
	"strings"
)

// DefaultExemptPaths are reachable without a session.
var DefaultExemptPaths = []string{"/", "/login", "/register", "/healthz", "/metrics"}

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
	AdminPrefixes  []string
}

// NewDefaultPolicy builds a policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	if exemptPaths == nil {
		exemptPaths = DefaultExemptPaths
	}
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request may proceed without a session.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole resolves the role a non-exempt request needs.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	for _, prefix := range p.AdminPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return RoleAdmin, true
		}
	}
	return RoleUser, true
}

// RequiresCSRF reports whether the method changes state.
func RequiresCSRF(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}
