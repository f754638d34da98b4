package port

import (
	"context"
	"time"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
)

// SessionRepository deals with session storage. Sessions are addressed by token hash.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	// FindValid returns the session only when it exists and expires after now.
	FindValid(ctx context.Context, tokenHash string, now time.Time) (*domain.Session, error)
	Delete(ctx context.Context, tokenHash string) (bool, error)
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
	// DeleteExpired removes sessions with expires_at <= now.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
