package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/kamino-gate/internal/database"
	"github.com/BradenHooton/kamino-gate/internal/models"
)

// LoginAttemptRepository handles database operations for login attempt history
type LoginAttemptRepository struct {
	db *database.DB
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// RecordAttempt records a login attempt in the database
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (email, ip_address, user_agent, attempt_time, success, failure_reason, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.Email,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.AttemptTime,
		attempt.Success,
		attempt.FailureReason,
		attempt.ExpiresAt,
	)

	return database.MapPostgresError(err)
}

// DeleteExpiredAttempts removes attempts whose retention has passed
func (r *LoginAttemptRepository) DeleteExpiredAttempts(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM login_attempts WHERE expires_at <= $1`

	result, err := r.db.Pool.Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
