package port

import (
	"context"
	"time"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByOAuth(ctx context.Context, provider, subject string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate, at time.Time) (*domain.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string, at time.Time) error
	MarkVerified(ctx context.Context, id string, at time.Time) error
	LinkOAuth(ctx context.Context, id string, identity domain.ExternalIdentity, at time.Time) error
}
