package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCookieLifetime(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 10, 16, 8, 0, 0, 0, time.UTC))
	sessions := newTestSessions(t, clock)

	browser, _ := issueCookie(t, sessions, RoleUser, false)
	assert.Zero(t, browser.MaxAge)
	assert.True(t, browser.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, browser.SameSite)

	remembered, _ := issueCookie(t, sessions, RoleUser, true)
	assert.Equal(t, int((48 * time.Hour).Seconds()), remembered.MaxAge)
}

func TestSessionExpires(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 10, 16, 8, 0, 0, 0, time.UTC))
	sessions := newTestSessions(t, clock)
	cookie, issued := issueCookie(t, sessions, RoleAdmin, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	got, err := sessions.Read(req)
	require.NoError(t, err)
	assert.Equal(t, issued, got)
	assert.True(t, got.IsAdmin())
	assert.NotEmpty(t, got.SessionID)

	clock.Advance(2 * time.Hour)
	_, err = sessions.Read(req)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionRejectsForeignSignature(t *testing.T) {
	sessions := newTestSessions(t, clockwork.NewRealClock())
	other, err := NewSessions([]byte("other-secret"))
	require.NoError(t, err)
	cookie, _ := issueCookie(t, other, RoleAdmin, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	_, err = sessions.Read(req)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClearExpiresCookie(t *testing.T) {
	sessions := newTestSessions(t, clockwork.NewRealClock())
	rec := httptest.NewRecorder()
	sessions.Clear(rec)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestCSRFTokenIsBoundToSession(t *testing.T) {
	sessions := newTestSessions(t, clockwork.NewRealClock())
	a := sessions.CSRFToken("session-a")
	assert.Equal(t, a, sessions.CSRFToken("session-a"))
	assert.NotEqual(t, a, sessions.CSRFToken("session-b"))
	assert.True(t, VerifyCSRF(a, a))
	assert.False(t, VerifyCSRF(a, ""))
	assert.False(t, VerifyCSRF("", ""))
}
