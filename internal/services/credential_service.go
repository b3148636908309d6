package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/kamino-gate/internal/models"
)

// AccountLookup finds an account by email, returning models.ErrNotFound when absent
type AccountLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// PasswordComparer is a one-way password check. DummyHash must return a
// well-formed hash that Compare accepts and that costs as much as a real one.
type PasswordComparer interface {
	Compare(hashedPassword, password string) (bool, error)
	DummyHash() (string, error)
}

// TokenIssuer mints the opaque session token handed out on success
type TokenIssuer interface {
	GenerateSessionToken(email, userID string) (string, error)
}

// CredentialVerifier checks an email/password pair. The password comparison
// always runs, against the dummy hash when the email is unknown, and account
// existence only enters the final verdict.
type CredentialVerifier struct {
	accounts AccountLookup
	hasher   PasswordComparer
	tokens   TokenIssuer
}

// NewCredentialVerifier creates a new CredentialVerifier
func NewCredentialVerifier(accounts AccountLookup, hasher PasswordComparer, tokens TokenIssuer) *CredentialVerifier {
	return &CredentialVerifier{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
	}
}

// CheckLoginCredentials returns the public profile and a fresh session token
// when the credentials match, or nil when they do not.
func (v *CredentialVerifier) CheckLoginCredentials(ctx context.Context, email, password string) (*models.LoginResult, error) {
	user, err := v.accounts.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	found := err == nil && user != nil

	secret, err := v.hasher.DummyHash()
	if err != nil {
		return nil, err
	}
	if found {
		secret = user.PasswordHash
	}

	matched, err := v.hasher.Compare(secret, password)
	if err != nil {
		return nil, err
	}

	if !(found && matched) {
		return nil, nil
	}

	token, err := v.tokens.GenerateSessionToken(user.Email, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	return &models.LoginResult{
		Email:  user.Email,
		Name:   user.Name,
		UserID: user.ID,
		Token:  token,
	}, nil
}
