// Package common defines shared constants and sentinel errors used across
// repositories, services and transports of rapidphotos. Callers should use
// errors.Is / errors.As to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Request and lifecycle errors.
	ErrorValidation         = errors.New("validation failed")
	ErrorLimitExceeded      = errors.New("limit exceeded")
	ErrorVerificationFailed = errors.New("verification failed")

	// Auth errors (invalid, malformed or expired token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
