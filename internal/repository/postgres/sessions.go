package postgres

import (
	"context"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/core/port"
)

var sessionColumns = []string{"id", "user_id", "token_hash", "created_at", "expires_at"}

// SessionRepository stores login sessions keyed by token digest.
type SessionRepository struct {
	store
}

var _ port.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(db pgExecutor) *SessionRepository {
	return &SessionRepository{store: newStore(db)}
}

func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	_, err := r.write(ctx, "insert session", r.sq.Insert(sessionsTable).
		Columns(sessionColumns...).
		Values(session.ID, session.UserID, session.TokenHash, session.CreatedAt, session.ExpiresAt))
	return err
}

// FindValid returns the session for tokenHash when it expires after now.
func (r *SessionRepository) FindValid(ctx context.Context, tokenHash string, now time.Time) (*domain.Session, error) {
	query := r.sq.Select(sessionColumns...).
		From(sessionsTable).
		Where(squirrel.Eq{"token_hash": tokenHash}).
		Where(squirrel.Gt{"expires_at": now}).
		Limit(1)

	var s domain.Session
	err := r.one(ctx, "select session", query, func(row pgx.Row) error {
		return row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.CreatedAt, &s.ExpiresAt)
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete removes the session for tokenHash and reports whether one existed.
func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) (bool, error) {
	n, err := r.purge(ctx, "delete session", squirrel.Eq{"token_hash": tokenHash})
	return n > 0, err
}

func (r *SessionRepository) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	return r.purge(ctx, "delete user sessions", squirrel.Eq{"user_id": userID})
}

// DeleteExpired removes sessions with expires_at <= now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return r.purge(ctx, "delete expired sessions", squirrel.LtOrEq{"expires_at": now})
}

func (r *SessionRepository) purge(ctx context.Context, op string, where squirrel.Sqlizer) (int, error) {
	n, err := r.write(ctx, op, r.sq.Delete(sessionsTable).Where(where))
	return int(n), err
}
