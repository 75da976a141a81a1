package auth

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

const (
	CSRFHeader    = "X-CSRF-Token"
	CSRFFormField = "csrf_token"
)

// Middleware reads the session cookie, enforces the policy and checks CSRF
// tokens on state-changing requests.
type Middleware struct {
	Sessions  *Sessions
	Policy    Policy
	LoginPath string
	// JSONPaths always receive JSON error bodies.
	JSONPaths []string
	// PostOnlyPaths skip the CSRF check for methods other than POST so the
	// handler can answer 405.
	PostOnlyPaths []string
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(sessions *Sessions, policy Policy) *Middleware {
	return &Middleware{Sessions: sessions, Policy: policy, LoginPath: "/login"}
}

// Wrap applies auth, RBAC and CSRF checks to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil || m.Sessions == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		identity, err := m.Sessions.Read(r)
		signedIn := err == nil

		var token string
		if signedIn {
			ctx = WithIdentity(ctx, identity)
			token = m.Sessions.CSRFToken(identity.SessionID)
		} else {
			token = m.Sessions.AnonymousCSRF(w, r)
		}
		ctx = WithCSRFToken(ctx, token)
		r = r.WithContext(ctx)

		if !m.Policy.IsExempt(r) {
			required, ok := m.Policy.RequiredRole(r)
			if ok && !signedIn {
				m.unauthorized(w, r)
				return
			}
			if ok && !RoleAtLeast(identity.Role, required) {
				m.writeError(w, r, http.StatusForbidden, "forbidden")
				return
			}
		}

		if m.requiresCSRF(r) && !VerifyCSRF(token, submittedCSRF(r)) {
			m.writeError(w, r, http.StatusForbidden, "invalid csrf token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) unauthorized(w http.ResponseWriter, r *http.Request) {
	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && !m.wantsJSON(r) {
		target := m.LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	m.writeError(w, r, http.StatusUnauthorized, "unauthorized")
}

func (m *Middleware) requiresCSRF(r *http.Request) bool {
	if !RequiresCSRF(r.Method) {
		return false
	}
	return r.Method == http.MethodPost || !pathIn(r, m.PostOnlyPaths)
}

func (m *Middleware) wantsJSON(r *http.Request) bool {
	return pathIn(r, m.JSONPaths) || WantsJSON(r)
}

func pathIn(r *http.Request, paths []string) bool {
	for _, path := range paths {
		if r.URL.Path == path {
			return true
		}
	}
	return false
}

func submittedCSRF(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(CSRFHeader)); token != "" {
		return token
	}
	return r.FormValue(CSRFFormField)
}

// WantsJSON reports whether the client asked for a JSON response.
func WantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

func (m *Middleware) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if m.wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": msg})
		return
	}
	http.Error(w, msg, status)
}
