package usecase

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidSession indicates the session token is unknown or expired. The two cases are not distinguished.
	ErrInvalidSession = errors.New("invalid session")
	// ErrUnauthorized is an alias of ErrInvalidSession for callers that only care about authentication.
	ErrUnauthorized = ErrInvalidSession
	// ErrSessionNotFound indicates logout was asked to delete a session that does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidToken indicates an ephemeral token is unknown, expired, already used or of another kind.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrStorageUnavailable wraps failures of the persistent store.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrDeliveryFailed indicates an outbound email could not be delivered.
	ErrDeliveryFailed = errors.New("email delivery failed")

	// ErrEmailAlreadyRegistered indicates signup for an email that already has an account.
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountDeactivated indicates the account exists but may not sign in.
	ErrAccountDeactivated = errors.New("account is deactivated")
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrPasswordPolicyViolation indicates the password does not satisfy the configured policy.
	ErrPasswordPolicyViolation = errors.New("password does not meet complexity requirements")
	// ErrOAuthFailed indicates the external identity could not be resolved.
	ErrOAuthFailed = errors.New("oauth authentication failed")
	// ErrOAuthUnavailable indicates no identity provider is configured.
	ErrOAuthUnavailable = errors.New("oauth provider not configured")
)

// RateLimitExceededError is returned when a limiter rejects an attempt.
type RateLimitExceededError struct {
	Scope      string
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: retry after %s", e.Scope, e.RetryAfter)
}

// ValidationError reports an invalid input field.
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
