package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	accounts "rainlog/internal/accounts/domain"
)

const pgUniqueViolation = "23505"

// UserRepository is a Postgres implementation for users.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository constructs a repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user and sets its id and creation time.
func (r *UserRepository) Create(ctx context.Context, user *accounts.User) error {
	if r == nil || r.db == nil {
		return errors.New("user repo: nil db")
	}
	if user == nil {
		return errors.New("user repo: nil user")
	}
	err := r.db.QueryRowContext(ctx, `
INSERT INTO users (username, password_hash, is_admin)
VALUES ($1, $2, $3)
RETURNING id, created_at`, user.Username, user.PasswordHash, user.IsAdmin).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %q", accounts.ErrUsernameTaken, user.Username)
		}
		return err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return nil
}

// Get loads a user by id.
func (r *UserRepository) Get(ctx context.Context, id int64) (*accounts.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	return scanUser(r.db.QueryRowContext(ctx, `
SELECT id, username, password_hash, is_admin, created_at
FROM users
WHERE id = $1`, id))
}

// GetByUsername loads a user by exact username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*accounts.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	return scanUser(r.db.QueryRowContext(ctx, `
SELECT id, username, password_hash, is_admin, created_at
FROM users
WHERE username = $1`, username))
}

// SetAdmin grants or revokes the admin flag.
func (r *UserRepository) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	if r == nil || r.db == nil {
		return errors.New("user repo: nil db")
	}
	return r.update(ctx, `UPDATE users SET is_admin = $2 WHERE id = $1`, id, isAdmin)
}

// SetPassword replaces the password hash.
func (r *UserRepository) SetPassword(ctx context.Context, id int64, hash string) error {
	if r == nil || r.db == nil {
		return errors.New("user repo: nil db")
	}
	return r.update(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
}

func (r *UserRepository) update(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return accounts.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*accounts.User, error) {
	var user accounts.User
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsAdmin, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, accounts.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}
