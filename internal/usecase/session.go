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
	defaultSessionTTL        = 24 * time.Hour
	defaultSessionTokenBytes = 32
)

// SessionService owns the lifecycle of login sessions. Sessions are opaque
// random tokens; only their SHA-256 digest is persisted.
type SessionService struct {
	sessions   port.SessionRepository
	ttl        time.Duration
	tokenBytes int
	now        func() time.Time
}

// NewSessionService constructs a SessionService. Non-positive ttl and tokenBytes fall back to 24h and 32 bytes.
func NewSessionService(sessions port.SessionRepository, ttl time.Duration, tokenBytes int) *SessionService {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if tokenBytes < security.MinTokenBytes {
		tokenBytes = defaultSessionTokenBytes
	}
	return &SessionService{
		sessions:   sessions,
		ttl:        ttl,
		tokenBytes: tokenBytes,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// TTL returns the default session lifetime.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a session for userID. A non-positive ttl uses the service default.
func (s *SessionService) Issue(ctx context.Context, userID string, ttl time.Duration) (*domain.IssuedSession, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	secret, err := security.NewOpaqueToken(s.tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	now := s.now()
	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: secret.Digest,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, storageError("create session", err)
	}

	return &domain.IssuedSession{Session: session, Token: secret.Raw}, nil
}

// Validate resolves token to a live session. Unknown and expired tokens both yield ErrInvalidSession.
func (s *SessionService) Validate(ctx context.Context, token string) (*domain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidSession
	}

	now := s.now()
	session, err := s.sessions.FindValid(ctx, security.Digest(token), now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, storageError("find session", err)
	}
	if !session.IsActive(now) {
		return nil, ErrInvalidSession
	}
	return session, nil
}

// Revoke deletes the session behind token and reports whether one existed.
func (s *SessionService) Revoke(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}
	deleted, err := s.sessions.Delete(ctx, security.Digest(token))
	if err != nil {
		return false, storageError("delete session", err)
	}
	return deleted, nil
}

// RevokeAll deletes every session of userID and returns how many were removed.
func (s *SessionService) RevokeAll(ctx context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("user id is required")
	}
	count, err := s.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, storageError("delete user sessions", err)
	}
	return count, nil
}

// Sweep deletes sessions whose expiry is at or before now.
func (s *SessionService) Sweep(ctx context.Context) (int, error) {
	count, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, storageError("sweep sessions", err)
	}
	return count, nil
}
