package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	SessionCookieName = "rainlog_session"
	CSRFCookieName    = "rainlog_csrf"

	defaultSessionTTL  = 12 * time.Hour
	defaultRememberTTL = 30 * 24 * time.Hour
)

// Sessions issues and reads signed session cookies and derives CSRF tokens.
type Sessions struct {
	secret      []byte
	clock       clockwork.Clock
	ttl         time.Duration
	rememberTTL time.Duration
	secure      bool
}

// SessionOption configures Sessions.
type SessionOption func(*Sessions)

// WithSessionClock overrides the clock used for issue and expiry checks.
func WithSessionClock(clock clockwork.Clock) SessionOption {
	return func(s *Sessions) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithTTL sets the lifetime of browser-session and remembered logins.
func WithTTL(ttl, rememberTTL time.Duration) SessionOption {
	return func(s *Sessions) {
		if ttl > 0 {
			s.ttl = ttl
		}
		if rememberTTL > 0 {
			s.rememberTTL = rememberTTL
		}
	}
}

// WithSecureCookies marks cookies Secure.
func WithSecureCookies(secure bool) SessionOption {
	return func(s *Sessions) {
		s.secure = secure
	}
}

// NewSessions constructs a session manager.
func NewSessions(secret []byte, opts ...SessionOption) (*Sessions, error) {
	if len(secret) == 0 {
		return nil, errors.New("sessions: empty secret")
	}
	s := &Sessions{
		secret:      secret,
		clock:       clockwork.NewRealClock(),
		ttl:         defaultSessionTTL,
		rememberTTL: defaultRememberTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a new session for the user and sets the cookie. Without
// remember the cookie lasts for the browser session.
func (s *Sessions) Issue(w http.ResponseWriter, userID int64, username string, role Role, remember bool) (Identity, error) {
	now := s.clock.Now()
	ttl := s.ttl
	if remember {
		ttl = s.rememberTTL
	}
	claims := Claims{
		Username: username,
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := SignJWT(claims, s.secret)
	if err != nil {
		return Identity{}, err
	}
	cookie := s.cookie(SessionCookieName, token)
	if remember {
		cookie.MaxAge = int(ttl.Seconds())
		cookie.Expires = now.Add(ttl)
	}
	http.SetCookie(w, cookie)
	return claims.Identity()
}

// Read validates the session cookie of r.
func (s *Sessions) Read(r *http.Request) (Identity, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return Identity{}, ErrUnauthorized
	}
	claims, err := ParseJWT(cookie.Value, s.secret, s.clock.Now)
	if err != nil {
		return Identity{}, err
	}
	return claims.Identity()
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter) {
	cookie := s.cookie(SessionCookieName, "")
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
}

// CSRFToken derives the form token bound to a session id.
func (s *Sessions) CSRFToken(sessionID string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte("csrf\n"))
	_, _ = mac.Write([]byte(sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}

// AnonymousCSRF returns the pre-session token of r, creating and setting a
// new cookie when none is present.
func (s *Sessions) AnonymousCSRF(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(CSRFCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	token := uuid.NewString()
	http.SetCookie(w, s.cookie(CSRFCookieName, token))
	return token
}

// VerifyCSRF checks a submitted token in constant time.
func VerifyCSRF(expected, submitted string) bool {
	if expected == "" || submitted == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(submitted))
}

func (s *Sessions) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
