package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/kamino-gate/internal/models"
	pkgauth "github.com/BradenHooton/kamino-gate/pkg/auth"
)

// UserRepository defines the account store operations needed to provision accounts
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// PasswordHasher produces the stored password hash
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// UserService provisions accounts for the login gate
type UserService struct {
	repo   UserRepository
	hasher PasswordHasher
	logger *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(repo UserRepository, hasher PasswordHasher, logger *slog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		hasher: hasher,
		logger: logger,
	}
}

// EnsureUser creates the account unless one already exists for email.
// It reports whether a new account was created.
func (s *UserService) EnsureUser(ctx context.Context, email, password, name string) (bool, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)

	if email == "" {
		return false, fmt.Errorf("email is required")
	}
	if name == "" {
		return false, fmt.Errorf("name is required")
	}

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return false, fmt.Errorf("failed to check if user exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return false, err
	}

	hashedPassword, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}

	created, err := s.repo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         name,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Lost a race with another instance; the account exists either way
			return false, nil
		}
		return false, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user created", slog.String("user_id", created.ID))
	return true, nil
}
