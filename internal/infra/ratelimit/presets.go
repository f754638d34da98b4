package ratelimit

import (
	"time"

	"github.com/komiwalnut/AuthentiCute/internal/core/port"
)

// LoginConfig allows 5 login attempts per minute.
func LoginConfig() Config {
	return Config{Name: port.ScopeLogin, MaxRequests: 5, Window: time.Minute}
}

// SignupConfig allows 3 signups per 5 minutes.
func SignupConfig() Config {
	return Config{Name: port.ScopeSignup, MaxRequests: 3, Window: 5 * time.Minute}
}

// PasswordResetConfig allows 3 reset requests per 5 minutes.
func PasswordResetConfig() Config {
	return Config{Name: port.ScopePasswordReset, MaxRequests: 3, Window: 5 * time.Minute}
}
