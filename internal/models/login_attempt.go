package models

import "time"

// LoginAttempt is one recorded login outcome. History only: throttling reads the
// counters on User, never these rows.
type LoginAttempt struct {
	ID            string    `db:"id"`
	Email         string    `db:"email"`
	IPAddress     string    `db:"ip_address"`
	UserAgent     string    `db:"user_agent"`
	AttemptTime   time.Time `db:"attempt_time"`
	Success       bool      `db:"success"`
	FailureReason *string   `db:"failure_reason"`
	ExpiresAt     time.Time `db:"expires_at"`
}

// Failure reasons stored with unsuccessful attempts
const (
	FailureReasonInvalidCredentials = "invalid_credentials"
	FailureReasonTooManyAttempts    = "too_many_failed_attempts"
)
