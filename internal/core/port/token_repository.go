package port

import (
	"context"
	"time"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
)

// TokenRepository manages verification and reset token records.
type TokenRepository interface {
	Create(ctx context.Context, token domain.EphemeralToken) error
	// FindConsumable is a read-only lookup and must not be used to authorize a state change.
	FindConsumable(ctx context.Context, tokenHash string, kind domain.TokenKind, now time.Time) (*domain.EphemeralToken, error)
	// MarkUsedIfUnused flips used to true in a single conditional write and returns the owning user id.
	// Callers racing on the same token observe exactly one success.
	MarkUsedIfUnused(ctx context.Context, tokenHash string, kind domain.TokenKind, now time.Time) (string, error)
	// DeleteSpent removes tokens that are used or have expires_at <= now.
	DeleteSpent(ctx context.Context, now time.Time) (int, error)
}
