package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/repository"
)

func TestSessionRepository_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewSessionRepository(mock)

	createdAt := time.Now().UTC()
	session := domain.Session{
		ID:        "session-1",
		UserID:    "user-1",
		TokenHash: "hash-1",
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(24 * time.Hour),
	}

	mock.ExpectExec(`INSERT INTO sessions \(id,user_id,token_hash,created_at,expires_at\)`).
		WithArgs(session.ID, session.UserID, session.TokenHash, session.CreatedAt, session.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), session))
}

func TestSessionRepository_FindValid(t *testing.T) {
	mock := newMockPool(t)
	repo := NewSessionRepository(mock)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "user_id", "token_hash", "created_at", "expires_at"}).
		AddRow("session-1", "user-1", "hash-1", now.Add(-time.Hour), now.Add(time.Hour))

	mock.ExpectQuery(`SELECT .* FROM sessions WHERE token_hash = \$1 AND expires_at > \$2`).
		WithArgs("hash-1", now).
		WillReturnRows(rows)

	session, err := repo.FindValid(context.Background(), "hash-1", now)
	require.NoError(t, err)
	assert.Equal(t, "session-1", session.ID)
	assert.Equal(t, "user-1", session.UserID)
	assert.True(t, session.IsActive(now))
}

func TestSessionRepository_FindValidMissing(t *testing.T) {
	mock := newMockPool(t)
	repo := NewSessionRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM sessions`).
		WithArgs("hash-1", now).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "token_hash", "created_at", "expires_at"}))

	_, err := repo.FindValid(context.Background(), "hash-1", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionRepository_Delete(t *testing.T) {
	mock := newMockPool(t)
	repo := NewSessionRepository(mock)

	mock.ExpectExec(`DELETE FROM sessions WHERE token_hash = \$1`).
		WithArgs("hash-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM sessions WHERE token_hash = \$1`).
		WithArgs("hash-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	deleted, err := repo.Delete(context.Background(), "hash-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(context.Background(), "hash-1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSessionRepository_DeleteAllForUser(t *testing.T) {
	mock := newMockPool(t)
	repo := NewSessionRepository(mock)

	mock.ExpectExec(`DELETE FROM sessions WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	count, err := repo.DeleteAllForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	mock := newMockPool(t)
	repo := NewSessionRepository(mock)
	now := time.Now().UTC()

	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	count, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestSessionRepository_DeleteExpiredPropagatesErrors(t *testing.T) {
	mock := newMockPool(t)
	repo := NewSessionRepository(mock)
	now := time.Now().UTC()

	mock.ExpectExec(`DELETE FROM sessions`).
		WithArgs(now).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.DeleteExpired(context.Background(), now)
	assert.ErrorContains(t, err, "delete expired sessions")
}
