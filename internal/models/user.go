package models

import (
	"time"
)

// LoginState is the throttle state of an account, derived from its ban flag
type LoginState string

const (
	LoginStateClear  LoginState = "clear"
	LoginStateBanned LoginState = "banned"
)

type User struct {
	ID                  string
	Email               string
	PasswordHash        string
	Name                string
	FailedLoginAttempts int
	Banned              bool
	LastFailedLoginAt   *time.Time // Set on every failed attempt, never cleared
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// LoginState reports whether the account is currently banned
func (u *User) LoginState() LoginState {
	if u.Banned {
		return LoginStateBanned
	}
	return LoginStateClear
}

// BanLiftable reports whether the last failure is older than cooldown.
// Accounts without a recorded failure are never liftable.
func (u *User) BanLiftable(now time.Time, cooldown time.Duration) bool {
	if u.LastFailedLoginAt == nil {
		return false
	}
	return now.Sub(*u.LastFailedLoginAt) > cooldown
}

// LimitReached reports whether the failure counter is at or past limit
func (u *User) LimitReached(limit int) bool {
	return u.FailedLoginAttempts >= limit
}
