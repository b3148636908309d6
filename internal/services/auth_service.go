package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/kamino-gate/internal/auth"
	"github.com/BradenHooton/kamino-gate/internal/models"
	pkglogger "github.com/BradenHooton/kamino-gate/pkg/logger"
)

// AttemptRecorder stores login outcomes for later inspection
type AttemptRecorder interface {
	RecordLoginAttempt(ctx context.Context, email, ipAddress, userAgent string, success bool, failureReason *string) error
}

// AuthService runs a login through the throttle guard and the credential verifier
type AuthService struct {
	guard       *ThrottleGuard
	verifier    *CredentialVerifier
	recorder    AttemptRecorder
	timingDelay *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService. recorder and timingDelay may be nil;
// a nil auditLogger writes audit records through logger.
func NewAuthService(guard *ThrottleGuard, verifier *CredentialVerifier, recorder AttemptRecorder, timingDelay *auth.TimingDelay, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	if auditLogger == nil {
		auditLogger = pkglogger.NewAuditLogger(logger)
	}
	return &AuthService{
		guard:       guard,
		verifier:    verifier,
		recorder:    recorder,
		timingDelay: timingDelay,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Login decides a login attempt. It returns the login result when allowed,
// models.ErrTooManyFailedAttempts or models.ErrInvalidCredentials when denied,
// and any other error for store, comparison or token failures.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*models.LoginResult, error) {
	start := time.Now()
	masked := pkglogger.SanitizedEmail(email)

	outcome, err := s.guard.Admit(ctx, email)
	if outcome.BanLifted {
		s.auditLogger.LogAccountAction("login_ban_lifted", "", ipAddress, map[string]string{"email": masked})
	}
	if err != nil {
		if errors.Is(err, models.ErrTooManyFailedAttempts) {
			if outcome.BanImposed {
				s.auditLogger.LogAccountAction("login_ban_imposed", "", ipAddress, map[string]string{"email": masked})
			}
			s.deny(ctx, start, email, ipAddress, userAgent, models.FailureReasonTooManyAttempts)
			return nil, models.ErrTooManyFailedAttempts
		}
		s.logger.Error("login throttle check failed", slog.Any("error", err))
		return nil, err
	}

	result, err := s.verifier.CheckLoginCredentials(ctx, email, password)
	if err != nil {
		s.logger.Error("credential verification failed", slog.Any("error", err))
		return nil, err
	}

	if err := s.guard.Settle(ctx, email, result != nil); err != nil {
		s.logger.Error("failed to update login attempt state", slog.Any("error", err))
		return nil, err
	}

	if result == nil {
		s.logger.Info("login failed: invalid credentials")
		s.deny(ctx, start, email, ipAddress, userAgent, models.FailureReasonInvalidCredentials)
		return nil, models.ErrInvalidCredentials
	}

	s.logger.Info("user logged in", slog.String("user_id", result.UserID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    result.UserID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})
	s.record(ctx, email, ipAddress, userAgent, true, nil)

	if s.timingDelay != nil {
		s.timingDelay.WaitFrom(start, true)
	}

	return result, nil
}

// deny audits and records a refused attempt, then pads it to the timing floor
func (s *AuthService) deny(ctx context.Context, start time.Time, email, ipAddress, userAgent, reason string) {
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		Email:         pkglogger.SanitizedEmail(email),
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		Success:       false,
		FailureReason: reason,
	})
	s.record(ctx, email, ipAddress, userAgent, false, &reason)

	if s.timingDelay != nil {
		s.timingDelay.WaitFrom(start, false)
	}
}

// record is best effort: a history write failure never changes the decision
func (s *AuthService) record(ctx context.Context, email, ipAddress, userAgent string, success bool, reason *string) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordLoginAttempt(ctx, email, ipAddress, userAgent, success, reason); err != nil {
		s.logger.Warn("failed to record login attempt", slog.Any("error", err))
	}
}
