package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/komiwalnut/AuthentiCute/internal/infra/security"
)

func newTestSessionService(clock *testClock) (*SessionService, *mockSessionRepository) {
	repo := newMockSessionRepository()
	service := NewSessionService(repo, 0, 0)
	service.WithClock(clock.Now)
	return service, repo
}

func TestSessionService_IssueAndValidate(t *testing.T) {
	clock := newTestClock()
	service, repo := newTestSessionService(clock)
	ctx := context.Background()

	issued, err := service.Issue(ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	if len(issued.Token) < 22 {
		t.Fatalf("expected at least 128 bits of token entropy, got %q", issued.Token)
	}
	if issued.TokenHash != security.Digest(issued.Token) {
		t.Fatalf("expected stored hash to be derived from raw token")
	}
	if got := issued.ExpiresAt.Sub(issued.CreatedAt); got != 24*time.Hour {
		t.Fatalf("expected 24h ttl, got %s", got)
	}
	if _, ok := repo.sessions[issued.Token]; ok {
		t.Fatalf("raw token must never be persisted")
	}

	session, err := service.Validate(ctx, issued.Token)
	if err != nil {
		t.Fatalf("validate session: %v", err)
	}
	if session.UserID != "user-1" {
		t.Fatalf("expected user-1, got %s", session.UserID)
	}
}

func TestSessionService_IssueGeneratesDistinctTokens(t *testing.T) {
	service, _ := newTestSessionService(newTestClock())

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		issued, err := service.Issue(context.Background(), "user-1", 0)
		if err != nil {
			t.Fatalf("issue session: %v", err)
		}
		if _, dup := seen[issued.Token]; dup {
			t.Fatalf("duplicate session token issued")
		}
		seen[issued.Token] = struct{}{}
	}
}

func TestSessionService_ValidateExpiresAtBoundary(t *testing.T) {
	clock := newTestClock()
	service, _ := newTestSessionService(clock)
	ctx := context.Background()

	issued, err := service.Issue(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	clock.Advance(time.Hour - time.Second)
	if _, err := service.Validate(ctx, issued.Token); err != nil {
		t.Fatalf("expected session valid just before expiry, got %v", err)
	}

	clock.Advance(time.Second)
	if _, err := service.Validate(ctx, issued.Token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession at expiry, got %v", err)
	}
}

func TestSessionService_ValidateUnknownToken(t *testing.T) {
	service, _ := newTestSessionService(newTestClock())

	for _, token := range []string{"", "   ", "does-not-exist"} {
		if _, err := service.Validate(context.Background(), token); !errors.Is(err, ErrInvalidSession) {
			t.Fatalf("token %q: expected ErrInvalidSession, got %v", token, err)
		}
	}
}

func TestSessionService_ValidateStorageFailure(t *testing.T) {
	service, repo := newTestSessionService(newTestClock())
	repo.err = errStoreDown

	_, err := service.Validate(context.Background(), "token")
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if errors.Is(err, ErrInvalidSession) {
		t.Fatalf("storage failure must not look like an invalid session")
	}
}

func TestSessionService_RevokeAndRevokeAll(t *testing.T) {
	service, repo := newTestSessionService(newTestClock())
	ctx := context.Background()

	first, _ := service.Issue(ctx, "user-1", 0)
	if _, err := service.Issue(ctx, "user-1", 0); err != nil {
		t.Fatalf("issue session: %v", err)
	}
	if _, err := service.Issue(ctx, "user-2", 0); err != nil {
		t.Fatalf("issue session: %v", err)
	}

	deleted, err := service.Revoke(ctx, first.Token)
	if err != nil || !deleted {
		t.Fatalf("expected revoke to delete session, got deleted=%v err=%v", deleted, err)
	}
	deleted, err = service.Revoke(ctx, first.Token)
	if err != nil || deleted {
		t.Fatalf("expected second revoke to be a no-op, got deleted=%v err=%v", deleted, err)
	}

	count, err := service.RevokeAll(ctx, "user-1")
	if err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 remaining session revoked, got %d", count)
	}
	if repo.count() != 1 {
		t.Fatalf("expected other user's session to survive, have %d", repo.count())
	}

	count, err = service.RevokeAll(ctx, "user-1")
	if err != nil || count != 0 {
		t.Fatalf("expected nothing left to revoke, got %d, %v", count, err)
	}
}

func TestSessionService_SweepRemovesOnlyExpired(t *testing.T) {
	clock := newTestClock()
	service, repo := newTestSessionService(clock)
	ctx := context.Background()

	short, _ := service.Issue(ctx, "user-1", time.Minute)
	boundary, _ := service.Issue(ctx, "user-1", 2*time.Minute)
	long, _ := service.Issue(ctx, "user-2", time.Hour)

	clock.Advance(2 * time.Minute)
	count, err := service.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 expired sessions swept, got %d", count)
	}
	if _, ok := repo.sessions[short.TokenHash]; ok {
		t.Fatalf("expired session survived sweep")
	}
	if _, ok := repo.sessions[boundary.TokenHash]; ok {
		t.Fatalf("session expiring exactly now survived sweep")
	}
	if _, ok := repo.sessions[long.TokenHash]; !ok {
		t.Fatalf("live session was swept")
	}
}
