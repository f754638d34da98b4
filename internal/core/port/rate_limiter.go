package port

import (
	"context"
	"time"
)

// Rate limit scopes. They name limiters in configuration and metrics and
// are reported on rejected attempts.
const (
	ScopeLogin         = "login"
	ScopeSignup        = "signup"
	ScopePasswordReset = "password_reset"
	ScopeAPI           = "api"
)

// RateLimitDecision is the outcome of a single admission check.
type RateLimitDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// RateLimiter admits or rejects attempts for an identifier over a trailing window.
// Rejected attempts are not recorded.
type RateLimiter interface {
	Admit(ctx context.Context, identifier string) (RateLimitDecision, error)
}
