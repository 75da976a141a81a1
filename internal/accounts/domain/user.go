package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	maxUsernameLen   = 150
	minPasswordLen   = 8
	maxPasswordBytes = 72
)

var (
	ErrNotFound           = errors.New("accounts: user not found")
	ErrUsernameTaken      = errors.New("accounts: username already taken")
	ErrInvalidUsername    = errors.New("accounts: invalid username")
	ErrWeakPassword       = errors.New("accounts: password too weak")
	ErrPasswordMismatch   = errors.New("accounts: passwords do not match")
	ErrInvalidCredentials = errors.New("accounts: invalid username or password")
)

// User is a registered account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// NormalizeUsername trims the name and checks length and charset: letters,
// digits and @ . + - _.
func NormalizeUsername(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	if utf8.RuneCountInString(name) > maxUsernameLen {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidUsername, maxUsernameLen)
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@.+-_", r) {
			continue
		}
		return "", fmt.Errorf("%w: %q contains %q", ErrInvalidUsername, raw, r)
	}
	return name, nil
}

// ValidatePassword checks strength and confirmation.
func ValidatePassword(password, confirm string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return fmt.Errorf("%w: at least %d characters required", ErrWeakPassword, minPasswordLen)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: longer than %d bytes", ErrWeakPassword, maxPasswordBytes)
	}
	allDigits := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		return fmt.Errorf("%w: entirely numeric", ErrWeakPassword)
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	SetAdmin(ctx context.Context, id int64, isAdmin bool) error
	SetPassword(ctx context.Context, id int64, hash string) error
}
