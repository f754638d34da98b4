package port

import (
	"context"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
)

// EmailMessage is a rendered outbound email.
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// EmailSender delivers transactional email.
type EmailSender interface {
	Send(ctx context.Context, message EmailMessage) error
}

// IdentityProvider performs the OAuth authorization code flow against an external provider.
type IdentityProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (domain.ExternalIdentity, error)
}

// AccountNotifier sends the account lifecycle emails that carry one-time tokens.
type AccountNotifier interface {
	SendVerification(ctx context.Context, to, token string) error
	SendPasswordReset(ctx context.Context, to, token string) error
}
