package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/komiwalnut/AuthentiCute/internal/core/port"
)

// Limiters groups the per-operation rate limiters. A nil limiter admits everything.
type Limiters struct {
	Login         port.RateLimiter
	Signup        port.RateLimiter
	PasswordReset port.RateLimiter
}

// RequestMeta describes the caller of an operation.
type RequestMeta struct {
	IP        string
	UserAgent string
}

func (m RequestMeta) ipPtr() *string {
	if ip := strings.TrimSpace(m.IP); ip != "" {
		return &ip
	}
	return nil
}

// rateLimitIdentifier keys attempts by email and client address when an email
// is known, by address alone otherwise.
func rateLimitIdentifier(email, ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	email = normalizeEmail(email)
	if email == "" {
		return ip
	}
	return email + ":" + ip
}

// admit asks limiter for a slot. Limiter failures are logged and the attempt is allowed.
func admit(ctx context.Context, limiter port.RateLimiter, scope, identifier string, log *zap.Logger) error {
	if limiter == nil {
		return nil
	}
	decision, err := limiter.Admit(ctx, identifier)
	if err != nil {
		log.Warn("rate limiter unavailable, admitting request", zap.String("scope", scope), zap.Error(err))
		return nil
	}
	if !decision.Allowed {
		return &RateLimitExceededError{Scope: scope, Limit: decision.Limit, RetryAfter: decision.RetryAfter}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
