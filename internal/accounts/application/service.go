package application

import (
	"context"
	"errors"
	"log"

	"golang.org/x/crypto/bcrypt"

	accounts "rainlog/internal/accounts/domain"
	"rainlog/internal/observability/metrics"
)

// Service registers and authenticates users.
type Service struct {
	repo      accounts.UserRepository
	cost      int
	logger    *log.Logger
	dummyHash []byte
}

// Option configures the service.
type Option func(*Service)

// WithBcryptCost overrides the bcrypt work factor.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.cost = cost
		}
	}
}

// NewService constructs an accounts service.
func NewService(repo accounts.UserRepository, logger *log.Logger, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("accounts service: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{repo: repo, cost: bcrypt.DefaultCost, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("rainlog-timing-equaliser"), s.cost)
	if err != nil {
		return nil, err
	}
	s.dummyHash = hash
	return s, nil
}

// Register creates a non-admin account after validating the form.
func (s *Service) Register(ctx context.Context, username, password, confirm string) (*accounts.User, error) {
	name, err := accounts.NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if err := accounts.ValidatePassword(password, confirm); err != nil {
		return nil, err
	}
	return s.create(ctx, name, password, false)
}

// CreateUser creates an account from the command line. The confirmation
// check is left to the caller.
func (s *Service) CreateUser(ctx context.Context, username, password string, isAdmin bool) (*accounts.User, error) {
	name, err := accounts.NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if err := accounts.ValidatePassword(password, password); err != nil {
		return nil, err
	}
	return s.create(ctx, name, password, isAdmin)
}

// SetAdmin grants or revokes the admin flag by username.
func (s *Service) SetAdmin(ctx context.Context, username string, isAdmin bool) error {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := s.repo.SetAdmin(ctx, user.ID, isAdmin); err != nil {
		return err
	}
	s.logger.Printf("accounts set-admin: user=%q admin=%t", user.Username, isAdmin)
	return nil
}

// Authenticate checks credentials. Unknown users and wrong passwords both
// yield ErrInvalidCredentials after a comparable amount of work.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*accounts.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			metrics.IncLogin(metrics.ResultInvalid)
			return nil, accounts.ErrInvalidCredentials
		}
		metrics.IncLogin(metrics.ResultError)
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.IncLogin(metrics.ResultInvalid)
		return nil, accounts.ErrInvalidCredentials
	}
	metrics.IncLogin(metrics.ResultSuccess)
	return user, nil
}

func (s *Service) create(ctx context.Context, username, password string, isAdmin bool) (*accounts.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	user := &accounts.User{Username: username, PasswordHash: string(hash), IsAdmin: isAdmin}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Printf("accounts create: id=%d user=%q admin=%t", user.ID, user.Username, user.IsAdmin)
	return user, nil
}
