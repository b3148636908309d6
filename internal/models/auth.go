package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims carried by an issued session token
type SessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// LoginResult is returned to the caller when a login is allowed
type LoginResult struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}
