package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("resource already exists")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	// Login denials surfaced to the caller
	ErrTooManyFailedAttempts = errors.New("too many failed login attempts")
	ErrInvalidCredentials    = errors.New("invalid credentials")
)
