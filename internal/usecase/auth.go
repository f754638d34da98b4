package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/core/port"
	"github.com/komiwalnut/AuthentiCute/internal/infra/logger"
	"github.com/komiwalnut/AuthentiCute/internal/repository"
)

const (
	registrationMethodPassword = "password"

	revokeReasonLogout    = "logout"
	revokeReasonLogoutAll = "logout_all"

	maxNameLength = 100
)

// AuthService coordinates signup, login, logout and email verification.
type AuthService struct {
	users    port.UserRepository
	hasher   port.PasswordHasher
	policy   port.PasswordPolicyValidator
	sessions *SessionService
	tokens   *TokenService
	notifier port.AccountNotifier
	events   port.EventPublisher
	limits   Limiters
	logger   *zap.Logger
	now      func() time.Time

	decoyOnce sync.Once
	decoyHash string
}

// NewAuthService constructs an AuthService.
func NewAuthService(
	users port.UserRepository,
	hasher port.PasswordHasher,
	policy port.PasswordPolicyValidator,
	sessions *SessionService,
	tokens *TokenService,
	notifier port.AccountNotifier,
	events port.EventPublisher,
	limits Limiters,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:    users,
		hasher:   hasher,
		policy:   policy,
		sessions: sessions,
		tokens:   tokens,
		notifier: notifier,
		events:   events,
		limits:   limits,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// SignupInput carries a registration request.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	Meta     RequestMeta
}

// SignupResult reports the created account. VerificationSent is false when the
// verification email could not be delivered; the account exists regardless.
type SignupResult struct {
	User             domain.User
	VerificationSent bool
}

// LoginResult carries a freshly issued session and its owner.
type LoginResult struct {
	Session domain.IssuedSession
	User    domain.User
}

// Signup registers a password account and sends the verification email.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*SignupResult, error) {
	if err := admit(ctx, s.limits.Signup, port.ScopeSignup, rateLimitIdentifier("", input.Meta.IP), s.logger); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	switch {
	case name == "":
		return nil, &ValidationError{Field: "name", Message: "name is required"}
	case utf8.RuneCountInString(name) > maxNameLength:
		return nil, &ValidationError{Field: "name", Message: "name is too long"}
	case email == "":
		return nil, &ValidationError{Field: "email", Message: "email is required"}
	case input.Password == "":
		return nil, &ValidationError{Field: "password", Message: "password is required"}
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailAlreadyRegistered
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, storageError("lookup user", err)
	}

	if err := s.validatePassword(input.Password, domain.PasswordContext{Name: &name, Email: &email}); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: &hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, storageError("create user", err)
	}

	sent := s.sendVerification(ctx, user)

	s.publishUserRegistered(ctx, user, registrationMethodPassword, input.Meta)
	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
		zap.Bool("verification_sent", sent),
	)

	sanitized := user
	sanitized.PasswordHash = nil
	return &SignupResult{User: sanitized, VerificationSent: sent}, nil
}

// Login checks credentials and issues a session. Unknown email and wrong password
// both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMeta) (*LoginResult, error) {
	email = normalizeEmail(email)
	if err := admit(ctx, s.limits.Login, port.ScopeLogin, rateLimitIdentifier(email, meta.IP), s.logger); err != nil {
		return nil, err
	}
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.burnVerify(password)
			return nil, ErrInvalidCredentials
		}
		return nil, storageError("lookup user", err)
	}

	if !user.HasPassword() {
		s.burnVerify(password)
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, *user.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash unreadable", zap.String("user_id", user.ID), zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}
	s.upgradeHash(ctx, user, password)

	issued, err := s.sessions.Issue(ctx, user.ID, 0)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("ip", logger.MaskIP(meta.IP)),
	)

	sanitized := *user
	sanitized.PasswordHash = nil
	return &LoginResult{Session: *issued, User: sanitized}, nil
}

// upgradeHash re-hashes password when the stored hash predates the current
// argon2 parameters. Failures only cost the upgrade.
func (s *AuthService) upgradeHash(ctx context.Context, user *domain.User, password string) {
	if !s.hasher.NeedsRehash(*user.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("rehash password failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash, s.now()); err != nil {
		s.logger.Warn("store upgraded password hash failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	s.logger.Info("password hash upgraded", zap.String("user_id", user.ID))
}

// Logout deletes the session behind token. Unknown and expired tokens both
// yield ErrSessionNotFound; an expired row is still removed.
func (s *AuthService) Logout(ctx context.Context, token string, meta RequestMeta) error {
	session, err := s.sessions.Validate(ctx, token)
	if err != nil && !errors.Is(err, ErrInvalidSession) {
		return err
	}

	deleted, err := s.sessions.Revoke(ctx, token)
	if err != nil {
		return err
	}
	if !deleted || session == nil {
		return ErrSessionNotFound
	}

	s.publishSessionRevoked(ctx, session.UserID, session.ID, revokeReasonLogout, 1, meta)
	return nil
}

// LogoutAll deletes every session of userID.
func (s *AuthService) LogoutAll(ctx context.Context, userID string, meta RequestMeta) (int, error) {
	count, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.publishSessionRevoked(ctx, userID, "", revokeReasonLogoutAll, count, meta)
	return count, nil
}

// Authenticate resolves a session token to its session and active owner.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, *domain.Session, error) {
	session, err := s.sessions.Validate(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidSession
		}
		return nil, nil, storageError("lookup user", err)
	}
	if !user.IsActive {
		return nil, nil, ErrInvalidSession
	}

	user.PasswordHash = nil
	return user, session, nil
}

// VerifyEmail consumes a verification token and marks its owner verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.tokens.Consume(ctx, token, domain.TokenKindVerification)
	if err != nil {
		return err
	}

	now := s.now()
	if err := s.users.MarkVerified(ctx, userID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return storageError("mark user verified", err)
	}

	publishEvent(ctx, s.events, s.logger, domain.EmailVerifiedEvent{EventHeader: newEventHeader(userID, now)})
	return nil
}

// ResendVerification issues a new verification token for an unverified user. It
// reports false when the account is already verified.
func (s *AuthService) ResendVerification(ctx context.Context, user domain.User, meta RequestMeta) (bool, error) {
	if err := admit(ctx, s.limits.Signup, port.ScopeSignup, rateLimitIdentifier("", meta.IP), s.logger); err != nil {
		return false, err
	}
	if user.IsVerified {
		return false, nil
	}
	if !s.sendVerification(ctx, user) {
		return false, ErrDeliveryFailed
	}
	return true, nil
}

func (s *AuthService) sendVerification(ctx context.Context, user domain.User) bool {
	issued, err := s.tokens.Issue(ctx, user.ID, domain.TokenKindVerification, 0)
	if err != nil {
		s.logger.Error("issue verification token failed", zap.String("user_id", user.ID), zap.Error(err))
		return false
	}
	if s.notifier == nil {
		return false
	}
	if err := s.notifier.SendVerification(ctx, user.Email, issued.Token); err != nil {
		s.logger.Warn("verification email not delivered",
			append(logger.Error(err), zap.String("user_id", user.ID))...,
		)
		return false
	}
	return true
}

func (s *AuthService) validatePassword(password string, pctx domain.PasswordContext) error {
	return validatePassword(s.policy, password, pctx)
}

// burnVerify spends a hash verification so that unknown accounts take as long as known ones.
func (s *AuthService) burnVerify(password string) {
	s.decoyOnce.Do(func() {
		if hash, err := s.hasher.Hash(uuid.NewString()); err == nil {
			s.decoyHash = hash
		}
	})
	if s.decoyHash != "" {
		_, _ = s.hasher.Verify(password, s.decoyHash)
	}
}

func (s *AuthService) publishUserRegistered(ctx context.Context, user domain.User, method string, meta RequestMeta) {
	publishUserRegistered(ctx, s.events, s.logger, user, method, meta)
}

func (s *AuthService) publishSessionRevoked(ctx context.Context, userID, sessionID, reason string, count int, meta RequestMeta) {
	publishEvent(ctx, s.events, s.logger, domain.SessionRevokedEvent{
		EventHeader:     newEventHeader(userID, s.now()),
		SessionID:       sessionID,
		Reason:          reason,
		SessionsRevoked: count,
		IPAddress:       meta.ipPtr(),
	})
}

func validatePassword(policy port.PasswordPolicyValidator, password string, pctx domain.PasswordContext) error {
	if policy == nil {
		return nil
	}
	if err := policy.Validate(password, pctx); err != nil {
		return &ValidationError{Field: "password", Message: err.Error(), Cause: ErrPasswordPolicyViolation}
	}
	return nil
}
