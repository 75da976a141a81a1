package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the session JWT claims.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Identity converts validated claims to an Identity.
func (c *Claims) Identity() (Identity, error) {
	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, c.Subject)
	}
	role, ok := NormalizeRole(c.Role)
	if !ok {
		return Identity{}, fmt.Errorf("%w: invalid role", ErrInvalidToken)
	}
	return Identity{UserID: userID, Username: c.Username, Role: role, SessionID: c.ID}, nil
}

// SignJWT signs claims with HS256.
func SignJWT(claims Claims, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("auth: empty secret")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseJWT validates a JWT against now and returns claims.
func ParseJWT(tokenString string, secret []byte, now func() time.Time) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("auth: empty token")
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}
	if now == nil {
		now = time.Now
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}
	if _, ok := NormalizeRole(claims.Role); !ok {
		return nil, fmt.Errorf("%w: invalid role", ErrInvalidToken)
	}
	return claims, nil
}
