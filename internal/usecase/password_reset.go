package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/core/port"
	"github.com/komiwalnut/AuthentiCute/internal/infra/logger"
	"github.com/komiwalnut/AuthentiCute/internal/repository"
)

const passwordChangedByReset = "password_reset"

// PasswordService handles forgotten password requests and token based resets.
type PasswordService struct {
	users    port.UserRepository
	hasher   port.PasswordHasher
	policy   port.PasswordPolicyValidator
	sessions *SessionService
	tokens   *TokenService
	notifier port.AccountNotifier
	events   port.EventPublisher
	limiter  port.RateLimiter
	logger   *zap.Logger
	now      func() time.Time
}

// NewPasswordService constructs a PasswordService.
func NewPasswordService(
	users port.UserRepository,
	hasher port.PasswordHasher,
	policy port.PasswordPolicyValidator,
	sessions *SessionService,
	tokens *TokenService,
	notifier port.AccountNotifier,
	events port.EventPublisher,
	limiter port.RateLimiter,
	logger *zap.Logger,
) *PasswordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PasswordService{
		users:    users,
		hasher:   hasher,
		policy:   policy,
		sessions: sessions,
		tokens:   tokens,
		notifier: notifier,
		events:   events,
		limiter:  limiter,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *PasswordService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// PasswordResetResult summarizes a completed reset.
type PasswordResetResult struct {
	UserID          string
	ChangedAt       time.Time
	SessionsRevoked int
}

// ForgotPassword emails a reset link when email belongs to an active account.
// Unknown emails succeed silently so callers cannot probe for accounts.
func (s *PasswordService) ForgotPassword(ctx context.Context, email string, meta RequestMeta) error {
	email = normalizeEmail(email)
	if err := admit(ctx, s.limiter, port.ScopePasswordReset, rateLimitIdentifier(email, meta.IP), s.logger); err != nil {
		return err
	}
	if email == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug("password reset requested for unknown email", zap.String("email", logger.MaskEmail(email)))
			return nil
		}
		return storageError("lookup user", err)
	}
	if !user.IsActive {
		return nil
	}

	issued, err := s.tokens.Issue(ctx, user.ID, domain.TokenKindReset, 0)
	if err != nil {
		return err
	}

	delivered := true
	if s.notifier == nil {
		delivered = false
	} else if err := s.notifier.SendPasswordReset(ctx, user.Email, issued.Token); err != nil {
		s.logger.Warn("password reset email not delivered",
			append(logger.Error(err), zap.String("user_id", user.ID))...,
		)
		delivered = false
	}

	s.publishResetRequested(ctx, *user, issued.ExpiresAt, delivered, meta)

	if !delivered {
		return fmt.Errorf("send password reset email: %w", ErrDeliveryFailed)
	}
	return nil
}

// ResetPassword consumes a reset token, stores the new password and revokes
// every session of the user. A failed revoke is returned as a storage error.
func (s *PasswordService) ResetPassword(ctx context.Context, token, newPassword string, meta RequestMeta) (*PasswordResetResult, error) {
	if err := admit(ctx, s.limiter, port.ScopePasswordReset, rateLimitIdentifier("", meta.IP), s.logger); err != nil {
		return nil, err
	}

	consumable, err := s.tokens.Peek(ctx, token, domain.TokenKindReset)
	if err != nil {
		return nil, err
	}
	if !consumable {
		return nil, ErrInvalidToken
	}

	if newPassword == "" {
		return nil, &ValidationError{Field: "new_password", Message: "new password is required"}
	}
	if err := validatePassword(s.policy, newPassword, domain.PasswordContext{}); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}

	userID, err := s.tokens.Consume(ctx, token, domain.TokenKindReset)
	if err != nil {
		return nil, err
	}

	changedAt := s.now()
	if err := s.users.UpdatePassword(ctx, userID, hash, changedAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, storageError("update password", err)
	}

	revoked, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		s.logger.Error("revoke sessions after password reset failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.publishPasswordChanged(ctx, userID, changedAt, revoked, meta)
	s.logger.Info("password reset completed",
		zap.String("user_id", userID),
		zap.Int("sessions_revoked", revoked),
	)

	return &PasswordResetResult{UserID: userID, ChangedAt: changedAt, SessionsRevoked: revoked}, nil
}

func (s *PasswordService) publishResetRequested(ctx context.Context, user domain.User, expiresAt time.Time, delivered bool, meta RequestMeta) {
	publishEvent(ctx, s.events, s.logger, domain.PasswordResetRequestedEvent{
		EventHeader:       newEventHeader(user.ID, s.now()),
		MaskedDestination: logger.MaskEmail(user.Email),
		IPAddress:         meta.ipPtr(),
		ExpiresAt:         expiresAt,
		DeliverySucceeded: delivered,
	})
}

func (s *PasswordService) publishPasswordChanged(ctx context.Context, userID string, changedAt time.Time, revoked int, meta RequestMeta) {
	publishEvent(ctx, s.events, s.logger, domain.PasswordChangedEvent{
		EventHeader:     newEventHeader(userID, changedAt),
		ChangedBy:       passwordChangedByReset,
		SessionsRevoked: revoked,
		IPAddress:       meta.ipPtr(),
	})
}
