package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func newTestSessions(t *testing.T, clock clockwork.Clock) *Sessions {
	t.Helper()
	sessions, err := NewSessions(testSecret, WithSessionClock(clock), WithTTL(time.Hour, 48*time.Hour))
	require.NoError(t, err)
	return sessions
}

func issueCookie(t *testing.T, sessions *Sessions, role Role, remember bool) (*http.Cookie, Identity) {
	t.Helper()
	rec := httptest.NewRecorder()
	identity, err := sessions.Issue(rec, 7, "alice", role, remember)
	require.NoError(t, err)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0], identity
}

func okHandler(seen *Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen, _ = IdentityFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_NoSessionRedirectsPages(t *testing.T) {
	mw := NewMiddleware(newTestSessions(t, clockwork.NewRealClock()), NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/dashboard?station=2", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusSeeOther, resp.Code)
	assert.Equal(t, "/login?next="+url.QueryEscape("/dashboard?station=2"), resp.Header().Get("Location"))
}

func TestAuthMiddleware_NoSessionJSONIsUnauthorized(t *testing.T) {
	mw := NewMiddleware(newTestSessions(t, clockwork.NewRealClock()), NewDefaultPolicy(nil, nil))
	mw.JSONPaths = []string{"/records/inline-update"}
	handler := mw.Wrap(okHandler(nil))

	req := httptest.NewRequest(http.MethodPost, "/records/inline-update", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.JSONEq(t, `{"status":"error","message":"unauthorized"}`, resp.Body.String())
}

func TestAuthMiddleware_ExemptPathsPass(t *testing.T) {
	mw := NewMiddleware(newTestSessions(t, clockwork.NewRealClock()), NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler(nil))

	for _, path := range []string{"/", "/login", "/healthz"} {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, resp.Code, path)
	}
}

func TestAuthMiddleware_SessionSetsIdentity(t *testing.T) {
	sessions := newTestSessions(t, clockwork.NewRealClock())
	cookie, issued := issueCookie(t, sessions, RoleUser, false)
	mw := NewMiddleware(sessions, NewDefaultPolicy(nil, nil))
	var seen Identity
	handler := mw.Wrap(okHandler(&seen))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookie)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, issued, seen)
	assert.Equal(t, int64(7), seen.UserID)
	assert.False(t, seen.IsAdmin())
}

func TestAuthMiddleware_PostRequiresCSRF(t *testing.T) {
	sessions := newTestSessions(t, clockwork.NewRealClock())
	cookie, identity := issueCookie(t, sessions, RoleUser, false)
	mw := NewMiddleware(sessions, NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler(nil))

	req := httptest.NewRequest(http.MethodPost, "/enter", strings.NewReader("rainfall_mm=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	form := url.Values{"rainfall_mm": {"1"}, CSRFFormField: {sessions.CSRFToken(identity.SessionID)}}
	req = httptest.NewRequest(http.MethodPost, "/enter", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)

	req = httptest.NewRequest(http.MethodPost, "/records/inline-update", nil)
	req.Header.Set(CSRFHeader, sessions.CSRFToken(identity.SessionID))
	req.AddCookie(cookie)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestAuthMiddleware_PostOnlyPathPassesOtherMethods(t *testing.T) {
	sessions := newTestSessions(t, clockwork.NewRealClock())
	cookie, _ := issueCookie(t, sessions, RoleUser, false)
	mw := NewMiddleware(sessions, NewDefaultPolicy(nil, nil))
	mw.PostOnlyPaths = []string{"/records/inline-update"}
	handler := mw.Wrap(okHandler(nil))

	for _, method := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch} {
		req := httptest.NewRequest(method, "/records/inline-update", nil)
		req.AddCookie(cookie)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusOK, resp.Code, method)
	}

	req := httptest.NewRequest(http.MethodPost, "/records/inline-update", nil)
	req.AddCookie(cookie)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	req = httptest.NewRequest(http.MethodPut, "/enter", nil)
	req.AddCookie(cookie)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestAuthMiddleware_AnonymousLoginPostUsesCookieToken(t *testing.T) {
	sessions := newTestSessions(t, clockwork.NewRealClock())
	mw := NewMiddleware(sessions, NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler(nil))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/login", nil))
	cookies := resp.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, CSRFCookieName, cookies[0].Name)

	form := url.Values{"username": {"alice"}, CSRFFormField: {cookies[0].Value}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookies[0])
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)

	form.Set(CSRFFormField, "forged")
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookies[0])
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestAuthMiddleware_AdminPrefix(t *testing.T) {
	sessions := newTestSessions(t, clockwork.NewRealClock())
	policy := NewDefaultPolicy(nil, nil)
	policy.AdminPrefixes = []string{"/admin/"}
	handler := NewMiddleware(sessions, policy).Wrap(okHandler(nil))

	userCookie, _ := issueCookie(t, sessions, RoleUser, false)
	req := httptest.NewRequest(http.MethodGet, "/admin/stations", nil)
	req.AddCookie(userCookie)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	adminCookie, _ := issueCookie(t, sessions, RoleAdmin, false)
	req = httptest.NewRequest(http.MethodGet, "/admin/stations", nil)
	req.AddCookie(adminCookie)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}
