package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	accounts "rainlog/internal/accounts/domain"
)

// UserRepository is an in-memory user store for tests.
type UserRepository struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]accounts.User
}

// NewUserRepository constructs an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[int64]accounts.User)}
}

// Create stores a user and assigns its id.
func (r *UserRepository) Create(ctx context.Context, user *accounts.User) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username {
			return fmt.Errorf("%w: %q", accounts.ErrUsernameTaken, user.Username)
		}
	}
	r.nextID++
	user.ID = r.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.users[user.ID] = *user
	return nil
}

// Get loads a user by id.
func (r *UserRepository) Get(ctx context.Context, id int64) (*accounts.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	return &user, nil
}

// GetByUsername loads a user by exact username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*accounts.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Username == username {
			out := user
			return &out, nil
		}
	}
	return nil, accounts.ErrNotFound
}

// SetAdmin grants or revokes the admin flag.
func (r *UserRepository) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	return r.update(id, func(u *accounts.User) { u.IsAdmin = isAdmin })
}

// SetPassword replaces the password hash.
func (r *UserRepository) SetPassword(ctx context.Context, id int64, hash string) error {
	return r.update(id, func(u *accounts.User) { u.PasswordHash = hash })
}

func (r *UserRepository) update(id int64, fn func(*accounts.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return accounts.ErrNotFound
	}
	fn(&user)
	r.users[id] = user
	return nil
}
