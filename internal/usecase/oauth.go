package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/core/port"
	"github.com/komiwalnut/AuthentiCute/internal/infra/logger"
	"github.com/komiwalnut/AuthentiCute/internal/infra/security"
	"github.com/komiwalnut/AuthentiCute/internal/repository"
)

const oauthStateBytes = 32

// OAuthService signs users in through an external identity provider.
type OAuthService struct {
	provider port.IdentityProvider
	users    port.UserRepository
	sessions *SessionService
	events   port.EventPublisher
	limiter  port.RateLimiter
	logger   *zap.Logger
	now      func() time.Time
}

// NewOAuthService constructs an OAuthService. A nil provider disables the flow.
func NewOAuthService(
	provider port.IdentityProvider,
	users port.UserRepository,
	sessions *SessionService,
	events port.EventPublisher,
	limiter port.RateLimiter,
	logger *zap.Logger,
) *OAuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthService{
		provider: provider,
		users:    users,
		sessions: sessions,
		events:   events,
		limiter:  limiter,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *OAuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Enabled reports whether a provider is configured.
func (s *OAuthService) Enabled() bool {
	return s != nil && s.provider != nil
}

// Begin returns the provider consent URL and the state value the caller must
// hold on to until the callback.
func (s *OAuthService) Begin() (authURL, state string, err error) {
	if !s.Enabled() {
		return "", "", ErrOAuthUnavailable
	}
	secret, err := security.NewOpaqueToken(oauthStateBytes)
	if err != nil {
		return "", "", fmt.Errorf("generate oauth state: %w", err)
	}
	return s.provider.AuthCodeURL(secret.Raw), secret.Raw, nil
}

// VerifyState compares the callback state with the one issued by Begin.
func VerifyState(expected, received string) bool {
	return security.EqualTokens(expected, received)
}

// Complete exchanges code, maps the external identity to a local account and issues a session.
//
// Accounts are matched by (provider, subject) first. An existing password account
// with the same email is linked only when the provider reports the email as verified.
func (s *OAuthService) Complete(ctx context.Context, code string, meta RequestMeta) (*LoginResult, error) {
	if !s.Enabled() {
		return nil, ErrOAuthUnavailable
	}
	if err := admit(ctx, s.limiter, port.ScopeLogin, rateLimitIdentifier("", meta.IP), s.logger); err != nil {
		return nil, err
	}
	if strings.TrimSpace(code) == "" {
		return nil, ErrOAuthFailed
	}

	identity, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("oauth exchange failed",
			append(logger.Error(err), zap.String("provider", s.provider.Name()))...,
		)
		return nil, fmt.Errorf("%w: %w", ErrOAuthFailed, err)
	}

	user, err := s.resolveUser(ctx, identity, meta)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	issued, err := s.sessions.Issue(ctx, user.ID, 0)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = nil
	return &LoginResult{Session: *issued, User: *user}, nil
}

func (s *OAuthService) resolveUser(ctx context.Context, identity domain.ExternalIdentity, meta RequestMeta) (*domain.User, error) {
	user, err := s.users.GetByOAuth(ctx, identity.Provider, identity.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, storageError("lookup oauth user", err)
	}

	email := normalizeEmail(identity.Email)
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.link(ctx, existing, identity)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, storageError("lookup user", err)
	}

	return s.register(ctx, identity, meta)
}

func (s *OAuthService) link(ctx context.Context, user *domain.User, identity domain.ExternalIdentity) (*domain.User, error) {
	if !identity.EmailVerified {
		s.logger.Warn("refusing to link unverified provider email",
			zap.String("provider", identity.Provider),
			zap.String("email", logger.MaskEmail(identity.Email)),
		)
		return nil, fmt.Errorf("%w: provider email not verified", ErrOAuthFailed)
	}
	if user.OAuthProvider != nil && !user.IsLinkedTo(identity.Provider, identity.Subject) {
		return nil, fmt.Errorf("%w: account linked to another identity", ErrOAuthFailed)
	}

	now := s.now()
	if err := s.users.LinkOAuth(ctx, user.ID, identity, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: identity already linked", ErrOAuthFailed)
		}
		return nil, storageError("link oauth identity", err)
	}

	provider, subject, email := identity.Provider, identity.Subject, identity.Email
	user.OAuthProvider = &provider
	user.OAuthID = &subject
	user.OAuthEmail = &email
	user.IsVerified = true
	user.UpdatedAt = now

	s.logger.Info("linked oauth identity", zap.String("user_id", user.ID), zap.String("provider", provider))
	return user, nil
}

func (s *OAuthService) register(ctx context.Context, identity domain.ExternalIdentity, meta RequestMeta) (*domain.User, error) {
	email := normalizeEmail(identity.Email)
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}

	provider, subject := identity.Provider, identity.Subject
	now := s.now()
	user := domain.User{
		ID:            uuid.NewString(),
		Email:         email,
		Name:          name,
		OAuthProvider: &provider,
		OAuthID:       &subject,
		OAuthEmail:    &email,
		IsVerified:    identity.EmailVerified,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: account already exists", ErrOAuthFailed)
		}
		return nil, storageError("create oauth user", err)
	}

	publishUserRegistered(ctx, s.events, s.logger, user, provider, meta)
	s.logger.Info("user registered via oauth", zap.String("user_id", user.ID), zap.String("provider", provider))
	return &user, nil
}
