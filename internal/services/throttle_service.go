package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/kamino-gate/internal/models"
)

// AccountRepository is the account store the login core reads and mutates.
// Each mutation must be atomic on its own; none of them may create an account.
type AccountRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ResetFailedLoginAttempts(ctx context.Context, email string) error
	IncrementFailedLoginAttempts(ctx context.Context, email string, at time.Time) error
	BanAccount(ctx context.Context, email string) error
}

// ThrottleConfig holds the ban policy
type ThrottleConfig struct {
	MaxFailedAttempts int
	BanCooldown       time.Duration
}

// DefaultThrottleConfig bans on the fifth failure and lifts bans 30 minutes after the last one
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		MaxFailedAttempts: 5,
		BanCooldown:       30 * time.Minute,
	}
}

// ThrottleGuard owns the per-account failed-attempt and ban bookkeeping.
// State lives only in the account store; the guard holds nothing between calls.
type ThrottleGuard struct {
	repo   AccountRepository
	config ThrottleConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewThrottleGuard creates a new ThrottleGuard
func NewThrottleGuard(repo AccountRepository, config ThrottleConfig, logger *slog.Logger) *ThrottleGuard {
	return &ThrottleGuard{
		repo:   repo,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the guard's time source
func (g *ThrottleGuard) WithClock(now func() time.Time) *ThrottleGuard {
	g.now = now
	return g
}

// lookup returns nil without error when no account matches
func (g *ThrottleGuard) lookup(ctx context.Context, email string) (*models.User, error) {
	user, err := g.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	return user, nil
}

// IsBanned reports whether an account exists for email and is banned
func (g *ThrottleGuard) IsBanned(ctx context.Context, email string) (bool, error) {
	user, err := g.lookup(ctx, email)
	if err != nil || user == nil {
		return false, err
	}
	return user.LoginState() == models.LoginStateBanned, nil
}

// IsRemoveBan reports whether the account's last failure is older than the cooldown
func (g *ThrottleGuard) IsRemoveBan(ctx context.Context, email string) (bool, error) {
	user, err := g.lookup(ctx, email)
	if err != nil || user == nil {
		return false, err
	}
	return user.BanLiftable(g.now(), g.config.BanCooldown), nil
}

// IsLoginLimitExceeded reports whether the account's failure counter reached the limit
func (g *ThrottleGuard) IsLoginLimitExceeded(ctx context.Context, email string) (bool, error) {
	user, err := g.lookup(ctx, email)
	if err != nil || user == nil {
		return false, err
	}
	return user.LimitReached(g.config.MaxFailedAttempts), nil
}

// ResetFailedLoginAttempts zeroes the counter and lifts any ban
func (g *ThrottleGuard) ResetFailedLoginAttempts(ctx context.Context, email string) error {
	if err := g.repo.ResetFailedLoginAttempts(ctx, email); err != nil {
		return fmt.Errorf("failed to reset login attempts: %w", err)
	}
	return nil
}

// IncrementFailedLoginAttempts adds one failure stamped with the current time
func (g *ThrottleGuard) IncrementFailedLoginAttempts(ctx context.Context, email string) error {
	if err := g.repo.IncrementFailedLoginAttempts(ctx, email, g.now()); err != nil {
		return fmt.Errorf("failed to increment login attempts: %w", err)
	}
	return nil
}

// BanLoginAttempt flags the account as banned
func (g *ThrottleGuard) BanLoginAttempt(ctx context.Context, email string) error {
	if err := g.repo.BanAccount(ctx, email); err != nil {
		return fmt.Errorf("failed to ban account: %w", err)
	}
	return nil
}

// Admit runs the checks that precede credential verification. It returns
// models.ErrTooManyFailedAttempts when the attempt must be refused, and
// reports whether a ban was lifted or imposed along the way.
func (g *ThrottleGuard) Admit(ctx context.Context, email string) (AdmitOutcome, error) {
	var outcome AdmitOutcome

	banned, err := g.IsBanned(ctx, email)
	if err != nil {
		return outcome, err
	}

	if banned {
		removable, err := g.IsRemoveBan(ctx, email)
		if err != nil {
			return outcome, err
		}
		if !removable {
			return outcome, models.ErrTooManyFailedAttempts
		}
		if err := g.ResetFailedLoginAttempts(ctx, email); err != nil {
			return outcome, err
		}
		outcome.BanLifted = true
		g.logger.Info("login ban lifted after cooldown")
	}

	exceeded, err := g.IsLoginLimitExceeded(ctx, email)
	if err != nil {
		return outcome, err
	}
	if exceeded {
		if err := g.BanLoginAttempt(ctx, email); err != nil {
			return outcome, err
		}
		outcome.BanImposed = true
		g.logger.Warn("login limit exceeded, account banned",
			slog.Int("max_failed_attempts", g.config.MaxFailedAttempts))
		return outcome, models.ErrTooManyFailedAttempts
	}

	return outcome, nil
}

// Settle records the verification verdict: a reset on success, an increment on failure
func (g *ThrottleGuard) Settle(ctx context.Context, email string, success bool) error {
	if success {
		return g.ResetFailedLoginAttempts(ctx, email)
	}
	return g.IncrementFailedLoginAttempts(ctx, email)
}

// AdmitOutcome describes the ban transitions Admit performed
type AdmitOutcome struct {
	BanLifted  bool
	BanImposed bool
}
