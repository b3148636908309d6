package services

import (
	"context"
	"time"

	"github.com/BradenHooton/kamino-gate/internal/models"
)

// LoginAttemptRepository defines the interface for attempt history storage
type LoginAttemptRepository interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
}

// LoginAttemptService keeps a retention-bounded history of login outcomes.
// The history is informational; throttling never reads it.
type LoginAttemptService struct {
	repo      LoginAttemptRepository
	retention time.Duration
	now       func() time.Time
}

// NewLoginAttemptService creates a new LoginAttemptService
func NewLoginAttemptService(repo LoginAttemptRepository, retention time.Duration) *LoginAttemptService {
	return &LoginAttemptService{
		repo:      repo,
		retention: retention,
		now:       time.Now,
	}
}

// RecordLoginAttempt stores the outcome of a login attempt
func (s *LoginAttemptService) RecordLoginAttempt(ctx context.Context, email, ipAddress, userAgent string, success bool, failureReason *string) error {
	now := s.now()

	attempt := &models.LoginAttempt{
		Email:         email,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		AttemptTime:   now,
		Success:       success,
		FailureReason: failureReason,
		ExpiresAt:     now.Add(s.retention),
	}

	return s.repo.RecordAttempt(ctx, attempt)
}
