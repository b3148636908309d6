package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/kamino-gate/internal/models"
	pkglogger "github.com/BradenHooton/kamino-gate/pkg/logger"
)

// MockAccountRepository implements AccountRepository and UserRepository for testing
type MockAccountRepository struct {
	GetByEmailFunc                   func(ctx context.Context, email string) (*models.User, error)
	CreateFunc                       func(ctx context.Context, user *models.User) (*models.User, error)
	ResetFailedLoginAttemptsFunc     func(ctx context.Context, email string) error
	IncrementFailedLoginAttemptsFunc func(ctx context.Context, email string, at time.Time) error
	BanAccountFunc                   func(ctx context.Context, email string) error
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, errors.New("create not configured")
}

func (m *MockAccountRepository) ResetFailedLoginAttempts(ctx context.Context, email string) error {
	if m.ResetFailedLoginAttemptsFunc != nil {
		return m.ResetFailedLoginAttemptsFunc(ctx, email)
	}
	return nil
}

func (m *MockAccountRepository) IncrementFailedLoginAttempts(ctx context.Context, email string, at time.Time) error {
	if m.IncrementFailedLoginAttemptsFunc != nil {
		return m.IncrementFailedLoginAttemptsFunc(ctx, email, at)
	}
	return nil
}

func (m *MockAccountRepository) BanAccount(ctx context.Context, email string) error {
	if m.BanAccountFunc != nil {
		return m.BanAccountFunc(ctx, email)
	}
	return nil
}

// memoryAccountStore is an in-memory AccountRepository that counts mutations
type memoryAccountStore struct {
	mu         sync.Mutex
	users      map[string]*models.User
	resets     int
	increments int
	bans       int
}

func newMemoryAccountStore(users ...*models.User) *memoryAccountStore {
	s := &memoryAccountStore{users: make(map[string]*models.User)}
	for _, u := range users {
		s.users[u.Email] = u
	}
	return s
}

func (s *memoryAccountStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memoryAccountStore) ResetFailedLoginAttempts(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	if u, ok := s.users[email]; ok {
		u.FailedLoginAttempts = 0
		u.Banned = false
	}
	return nil
}

func (s *memoryAccountStore) IncrementFailedLoginAttempts(_ context.Context, email string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.increments++
	if u, ok := s.users[email]; ok {
		u.FailedLoginAttempts++
		stamp := at
		u.LastFailedLoginAt = &stamp
	}
	return nil
}

func (s *memoryAccountStore) BanAccount(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans++
	if u, ok := s.users[email]; ok {
		u.Banned = true
	}
	return nil
}

func (s *memoryAccountStore) mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets + s.increments + s.bans
}

func (s *memoryAccountStore) user(email string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[email]
}

func (s *memoryAccountStore) has(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[email]
	return ok
}

// spyComparer treats "hash:<password>" as the hash of <password> and records every comparison
type spyComparer struct {
	mu         sync.Mutex
	compared   []string
	CompareErr error
	DummyErr   error
}

const testDummyHash = "dummy-hash"

func testHash(password string) string { return "hash:" + password }

func (c *spyComparer) Compare(hashedPassword, password string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compared = append(c.compared, hashedPassword)
	if c.CompareErr != nil {
		return false, c.CompareErr
	}
	return hashedPassword == testHash(password), nil
}

func (c *spyComparer) DummyHash() (string, error) {
	if c.DummyErr != nil {
		return "", c.DummyErr
	}
	return testDummyHash, nil
}

func (c *spyComparer) Hash(password string) (string, error) {
	return testHash(password), nil
}

func (c *spyComparer) calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.compared...)
}

// MockTokenIssuer implements TokenIssuer for testing
type MockTokenIssuer struct {
	GenerateSessionTokenFunc func(email, userID string) (string, error)
}

func (m *MockTokenIssuer) GenerateSessionToken(email, userID string) (string, error) {
	if m.GenerateSessionTokenFunc != nil {
		return m.GenerateSessionTokenFunc(email, userID)
	}
	return "token-for-" + userID, nil
}

// MockAttemptRecorder implements AttemptRecorder for testing
type MockAttemptRecorder struct {
	mu       sync.Mutex
	Err      error
	Recorded []RecordedAttempt
}

type RecordedAttempt struct {
	Email   string
	Success bool
	Reason  string
}

func (m *MockAttemptRecorder) RecordLoginAttempt(_ context.Context, email, _, _ string, success bool, failureReason *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := RecordedAttempt{Email: email, Success: success}
	if failureReason != nil {
		r.Reason = *failureReason
	}
	m.Recorded = append(m.Recorded, r)
	return m.Err
}

// NewTestUser creates a clear account whose password is password
func NewTestUser(id, email, name, password string) *models.User {
	now := time.Now()
	return &models.User{
		ID:           id,
		Email:        email,
		Name:         name,
		PasswordHash: testHash(password),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(discardLogger())
}

// fixedClock returns a time source pinned to now
func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

func timePtr(t time.Time) *time.Time { return &t }
