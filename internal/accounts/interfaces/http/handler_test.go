package http

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	accountsapp "rainlog/internal/accounts/application"
	"rainlog/internal/accounts/infrastructure/memory"
	"rainlog/internal/audit"
	"rainlog/internal/auth"
	"rainlog/internal/web"
)

type fixture struct {
	service  *accountsapp.Service
	sessions *auth.Sessions
	audit    *audit.MemoryLog
	handler  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	service, err := accountsapp.NewService(memory.NewUserRepository(), logger, accountsapp.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	sessions, err := auth.NewSessions([]byte("accounts-handler-secret"), auth.WithTTL(time.Hour, 24*time.Hour))
	require.NoError(t, err)
	renderer, err := web.NewRenderer(time.UTC, logger)
	require.NoError(t, err)
	auditLog := audit.NewMemoryLog()

	h, err := NewHandler(service, sessions, renderer, auditLog, logger)
	require.NoError(t, err)
	router := mux.NewRouter()
	h.Routes(router)
	router.HandleFunc("/enter", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw := auth.NewMiddleware(sessions, auth.NewDefaultPolicy(nil, nil))
	return &fixture{service: service, sessions: sessions, audit: auditLog, handler: mw.Wrap(router)}
}

// anonymousToken performs a GET so the middleware hands out a pre-session CSRF cookie.
func (f *fixture) anonymousToken(t *testing.T) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CSRFCookieName {
			return c
		}
	}
	t.Fatal("no csrf cookie issued")
	return nil
}

func (f *fixture) post(t *testing.T, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestLoginSetsSessionAndRedirects(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Register(context.Background(), "reza", "baran-1403", "baran-1403")
	require.NoError(t, err)

	csrf := f.anonymousToken(t)
	rec := f.post(t, "/login", url.Values{
		"username":   {"reza"},
		"password":   {"baran-1403"},
		"next":       {"/dashboard?station=2"},
		"csrf_token": {csrf.Value},
	}, csrf)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard?station=2", rec.Header().Get("Location"))
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 0, cookie.MaxAge)

	entries := f.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionLogin, entries[0].Action)
	assert.Equal(t, "reza", entries[0].Actor)
}

func TestLoginRememberMeSetsPersistentCookie(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Register(context.Background(), "reza", "baran-1403", "baran-1403")
	require.NoError(t, err)

	csrf := f.anonymousToken(t)
	rec := f.post(t, "/login", url.Values{
		"username":   {"reza"},
		"password":   {"baran-1403"},
		"remember":   {"1"},
		"csrf_token": {csrf.Value},
	}, csrf)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, HomePath, rec.Header().Get("Location"))
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.Equal(t, int((24 * time.Hour).Seconds()), cookie.MaxAge)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	csrf := f.anonymousToken(t)
	rec := f.post(t, "/login", url.Values{
		"username":   {"nobody"},
		"password":   {"whatever-1"},
		"csrf_token": {csrf.Value},
	}, csrf)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "نام کاربری یا رمز عبور اشتباه است")
	assert.Contains(t, rec.Body.String(), `value="nobody"`)
	assert.Nil(t, sessionCookie(rec))
}

func TestLoginRequiresCSRF(t *testing.T) {
	f := newFixture(t)
	csrf := f.anonymousToken(t)
	rec := f.post(t, "/login", url.Values{"username": {"a"}, "password": {"b"}}, csrf)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegisterValidationEchoesInput(t *testing.T) {
	f := newFixture(t)
	csrf := f.anonymousToken(t)
	rec := f.post(t, "/register", url.Values{
		"username":   {"bad name!"},
		"password1":  {"baran-1403"},
		"password2":  {"baran-1403"},
		"csrf_token": {csrf.Value},
	}, csrf)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "bad name!")

	rec = f.post(t, "/register", url.Values{
		"username":   {"sara"},
		"password1":  {"baran-1403"},
		"password2":  {"baran-1404"},
		"csrf_token": {csrf.Value},
	}, csrf)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "تکرار رمز عبور")
}

func TestRegisterSignsInAndRedirects(t *testing.T) {
	f := newFixture(t)
	csrf := f.anonymousToken(t)
	rec := f.post(t, "/register", url.Values{
		"username":   {"sara"},
		"password1":  {"baran-1403"},
		"password2":  {"baran-1403"},
		"csrf_token": {csrf.Value},
	}, csrf)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, HomePath, rec.Header().Get("Location"))
	require.NotNil(t, sessionCookie(rec))

	rec = f.post(t, "/register", url.Values{
		"username":   {"sara"},
		"password1":  {"baran-1403"},
		"password2":  {"baran-1403"},
		"csrf_token": {csrf.Value},
	}, csrf)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "قبلا ثبت شده است")
}

func TestIndexRedirectsSignedInUsers(t *testing.T) {
	f := newFixture(t)
	issue := httptest.NewRecorder()
	_, err := f.sessions.Issue(issue, 1, "reza", auth.RoleUser, false)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(sessionCookie(issue))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, HomePath, rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "خوش آمدید")
}

func TestLogoutClearsSession(t *testing.T) {
	f := newFixture(t)
	issue := httptest.NewRecorder()
	identity, err := f.sessions.Issue(issue, 1, "reza", auth.RoleUser, false)
	require.NoError(t, err)

	rec := f.post(t, "/logout", url.Values{"csrf_token": {f.sessions.CSRFToken(identity.SessionID)}}, sessionCookie(issue))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)
	assert.True(t, cleared.MaxAge < 0)
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                      HomePath,
		"/dashboard":            "/dashboard",
		"/dashboard?date=1403":  "/dashboard?date=1403",
		"//evil.example":        HomePath,
		"/\\evil.example":       HomePath,
		"https://evil.example/": HomePath,
		"dashboard":             HomePath,
	}
	for in, want := range cases {
		assert.Equal(t, want, SafeNext(in), in)
	}
}
