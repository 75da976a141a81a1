package auth

import "context"

type contextKey string

const (
	contextKeyIdentity contextKey = "auth.identity"
	contextKeyCSRF     contextKey = "auth.csrf"
)

// Identity is the signed-in user of a request.
type Identity struct {
	UserID    int64
	Username  string
	Role      Role
	SessionID string
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return RoleAtLeast(i.Role, RoleAdmin)
}

// WithIdentity stores the signed-in identity in context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, identity)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(contextKeyIdentity).(Identity)
	if !ok || identity.UserID == 0 {
		return Identity{}, false
	}
	return identity, true
}

// WithCSRFToken stores the token forms on this request must echo.
func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKeyCSRF, token)
}

// CSRFTokenFromContext extracts the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if token, ok := ctx.Value(contextKeyCSRF).(string); ok {
		return token
	}
	return ""
}
