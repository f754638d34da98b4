package domain

import (
	"fmt"
	"time"
)

// TokenKind distinguishes the purpose of an ephemeral token.
type TokenKind string

const (
	TokenKindVerification TokenKind = "verification"
	TokenKindReset        TokenKind = "reset"
)

// Valid reports whether the kind is one of the known token kinds.
func (k TokenKind) Valid() bool {
	switch k {
	case TokenKindVerification, TokenKindReset:
		return true
	default:
		return false
	}
}

// ParseTokenKind converts a stored kind string into a TokenKind.
func ParseTokenKind(value string) (TokenKind, error) {
	kind := TokenKind(value)
	if !kind.Valid() {
		return "", fmt.Errorf("unknown token kind %q", value)
	}
	return kind, nil
}

// EphemeralToken is a single-use, time-bounded credential such as an email
// verification or password reset token. Used transitions false to true at most once.
type EphemeralToken struct {
	ID        string
	UserID    string
	Kind      TokenKind
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

// IsExpired reports whether the token has elapsed its validity window.
func (t EphemeralToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// IsConsumable returns true when the token is unused and unexpired.
func (t EphemeralToken) IsConsumable(at time.Time) bool {
	return !t.Used && !t.IsExpired(at)
}

// IsSpent reports whether the token is eligible for deletion.
func (t EphemeralToken) IsSpent(at time.Time) bool {
	return t.Used || t.IsExpired(at)
}

// IssuedToken pairs a stored token with its raw value for delivery.
type IssuedToken struct {
	EphemeralToken
	Token string
}
