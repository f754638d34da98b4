package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/core/port"
	"github.com/komiwalnut/AuthentiCute/internal/infra/security"
	"github.com/komiwalnut/AuthentiCute/internal/repository"
)

const (
	defaultVerificationTTL = 24 * time.Hour
	defaultResetTTL        = time.Hour
	defaultEphemeralBytes  = 32
)

// TokenSettings configures TokenService. Zero values use the defaults.
type TokenSettings struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	TokenBytes      int
}

// TokenService issues and consumes single-use email verification and password reset tokens.
type TokenService struct {
	tokens          port.TokenRepository
	verificationTTL time.Duration
	resetTTL        time.Duration
	tokenBytes      int
	now             func() time.Time
}

func NewTokenService(tokens port.TokenRepository, settings TokenSettings) *TokenService {
	s := &TokenService{
		tokens:          tokens,
		verificationTTL: settings.VerificationTTL,
		resetTTL:        settings.ResetTTL,
		tokenBytes:      settings.TokenBytes,
		now:             func() time.Time { return time.Now().UTC() },
	}
	if s.verificationTTL <= 0 {
		s.verificationTTL = defaultVerificationTTL
	}
	if s.resetTTL <= 0 {
		s.resetTTL = defaultResetTTL
	}
	if s.tokenBytes < security.MinTokenBytes {
		s.tokenBytes = defaultEphemeralBytes
	}
	return s
}

// WithClock overrides the internal clock for deterministic tests.
func (s *TokenService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// DefaultTTL returns the lifetime used for kind when Issue is called without one.
func (s *TokenService) DefaultTTL(kind domain.TokenKind) time.Duration {
	if kind == domain.TokenKindReset {
		return s.resetTTL
	}
	return s.verificationTTL
}

// Issue creates an unused token of kind for userID.
func (s *TokenService) Issue(ctx context.Context, userID string, kind domain.TokenKind, ttl time.Duration) (*domain.IssuedToken, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown token kind %q", kind)
	}
	if ttl <= 0 {
		ttl = s.DefaultTTL(kind)
	}

	secret, err := security.NewOpaqueToken(s.tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate %s token: %w", kind, err)
	}

	now := s.now()
	token := domain.EphemeralToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		TokenHash: secret.Digest,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, storageError("create token", err)
	}

	return &domain.IssuedToken{EphemeralToken: token, Token: secret.Raw}, nil
}

// Consume atomically marks token used and returns its owner. Only one concurrent
// caller can win; every other outcome is ErrInvalidToken.
func (s *TokenService) Consume(ctx context.Context, token string, kind domain.TokenKind) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" || !kind.Valid() {
		return "", ErrInvalidToken
	}

	userID, err := s.tokens.MarkUsedIfUnused(ctx, security.Digest(token), kind, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", storageError("consume token", err)
	}
	return userID, nil
}

// Peek reports whether token is currently consumable without changing it.
func (s *TokenService) Peek(ctx context.Context, token string, kind domain.TokenKind) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" || !kind.Valid() {
		return false, nil
	}

	now := s.now()
	found, err := s.tokens.FindConsumable(ctx, security.Digest(token), kind, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, storageError("find token", err)
	}
	return found.IsConsumable(now), nil
}

// Sweep deletes tokens that are used or expired.
func (s *TokenService) Sweep(ctx context.Context) (int, error) {
	count, err := s.tokens.DeleteSpent(ctx, s.now())
	if err != nil {
		return 0, storageError("sweep tokens", err)
	}
	return count, nil
}
