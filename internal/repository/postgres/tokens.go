package postgres

import (
	"context"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/core/port"
)

var tokenColumns = []string{"id", "user_id", "kind", "token_hash", "created_at", "expires_at", "used"}

// TokenRepository keeps verification and reset tokens in one table, told
// apart by kind.
type TokenRepository struct {
	store
}

var _ port.TokenRepository = (*TokenRepository)(nil)

func NewTokenRepository(db pgExecutor) *TokenRepository {
	return &TokenRepository{store: newStore(db)}
}

func (r *TokenRepository) Create(ctx context.Context, token domain.EphemeralToken) error {
	_, err := r.write(ctx, "insert token", r.sq.Insert(tokensTable).
		Columns(tokenColumns...).
		Values(token.ID, token.UserID, string(token.Kind), token.TokenHash, token.CreatedAt, token.ExpiresAt, token.Used))
	return err
}

// redeemable matches an unused, unexpired token of kind.
func redeemable(tokenHash string, kind domain.TokenKind, now time.Time) squirrel.And {
	return squirrel.And{
		squirrel.Eq{"token_hash": tokenHash},
		squirrel.Eq{"kind": string(kind)},
		squirrel.Eq{"used": false},
		squirrel.Gt{"expires_at": now},
	}
}

// FindConsumable returns the token when it is unused and unexpired at now.
func (r *TokenRepository) FindConsumable(ctx context.Context, tokenHash string, kind domain.TokenKind, now time.Time) (*domain.EphemeralToken, error) {
	query := r.sq.Select(tokenColumns...).
		From(tokensTable).
		Where(redeemable(tokenHash, kind, now)).
		Limit(1)

	var token domain.EphemeralToken
	err := r.one(ctx, "select token", query, func(row pgx.Row) error {
		var kind string
		if err := row.Scan(&token.ID, &token.UserID, &kind, &token.TokenHash, &token.CreatedAt, &token.ExpiresAt, &token.Used); err != nil {
			return err
		}
		parsed, err := domain.ParseTokenKind(kind)
		token.Kind = parsed
		return err
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// MarkUsedIfUnused flips used in one conditional UPDATE and returns the owner.
// A missing, expired or spent row changes nothing and yields
// repository.ErrNotFound, so of several concurrent callers exactly one wins.
func (r *TokenRepository) MarkUsedIfUnused(ctx context.Context, tokenHash string, kind domain.TokenKind, now time.Time) (string, error) {
	query := r.sq.Update(tokensTable).
		Set("used", true).
		Set("used_at", now).
		Where(redeemable(tokenHash, kind, now)).
		Suffix("RETURNING user_id")

	var userID string
	if err := r.one(ctx, "consume token", query, func(row pgx.Row) error { return row.Scan(&userID) }); err != nil {
		return "", err
	}
	return userID, nil
}

// DeleteSpent removes tokens that are used or expired at now.
func (r *TokenRepository) DeleteSpent(ctx context.Context, now time.Time) (int, error) {
	n, err := r.write(ctx, "delete spent tokens", r.sq.Delete(tokensTable).Where(squirrel.Or{
		squirrel.Eq{"used": true},
		squirrel.LtOrEq{"expires_at": now},
	}))
	return int(n), err
}
