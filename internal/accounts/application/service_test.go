package application

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	accounts "rainlog/internal/accounts/domain"
	"rainlog/internal/accounts/infrastructure/memory"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(memory.NewUserRepository(), log.New(io.Discard, "", 0), WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	return svc
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.Register(ctx, " alice ", "rain-gauge-7", "rain-gauge-7")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.False(t, user.IsAdmin)
	assert.NotEqual(t, "rain-gauge-7", user.PasswordHash)

	got, err := svc.Authenticate(ctx, "alice", "rain-gauge-7")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody", "rain-gauge-7")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.Register(ctx, "alice", "rain-gauge-7", "rain-gauge-7")
	require.NoError(t, err)

	cases := []struct {
		name, username, password, confirm string
		want                              error
	}{
		{"taken", "alice", "rain-gauge-7", "rain-gauge-7", accounts.ErrUsernameTaken},
		{"empty username", "  ", "rain-gauge-7", "rain-gauge-7", accounts.ErrInvalidUsername},
		{"bad charset", "al ice", "rain-gauge-7", "rain-gauge-7", accounts.ErrInvalidUsername},
		{"too long", strings.Repeat("a", 151), "rain-gauge-7", "rain-gauge-7", accounts.ErrInvalidUsername},
		{"short password", "bob", "short", "short", accounts.ErrWeakPassword},
		{"numeric password", "bob", "12345678", "12345678", accounts.ErrWeakPassword},
		{"mismatch", "bob", "rain-gauge-7", "rain-gauge-8", accounts.ErrPasswordMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.username, tc.password, tc.confirm)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPersianUsernameIsAllowed(t *testing.T) {
	svc := newTestService(t)
	user, err := svc.Register(context.Background(), "رضا_۱", "باران-زیاد-۱۴۰۳", "باران-زیاد-۱۴۰۳")
	require.NoError(t, err)
	assert.Equal(t, "رضا_۱", user.Username)
}

func TestCreateUserAndSetAdmin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	user, err := svc.CreateUser(ctx, "root", "operator-pass", true)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)

	require.NoError(t, svc.SetAdmin(ctx, "root", false))
	got, err := svc.Authenticate(ctx, "root", "operator-pass")
	require.NoError(t, err)
	assert.False(t, got.IsAdmin)

	assert.ErrorIs(t, svc.SetAdmin(ctx, "ghost", true), accounts.ErrNotFound)
}
