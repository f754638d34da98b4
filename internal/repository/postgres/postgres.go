package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/komiwalnut/AuthentiCute/internal/repository"
)

// Table names are unqualified; the pool's search_path selects the schema.
const (
	usersTable    = "users"
	sessionsTable = "sessions"
	tokensTable   = "auth_tokens"
)

// pgExecutor is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// store is the statement plumbing shared by the repositories.
type store struct {
	db pgExecutor
	sq squirrel.StatementBuilderType
}

func newStore(db pgExecutor) store {
	return store{db: db, sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)}
}

// write executes q and returns the affected row count. Unique violations
// surface as repository.ErrConflict.
func (s store) write(ctx context.Context, op string, q squirrel.Sqlizer) (int64, error) {
	stmt, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s sql: %w", op, err)
	}
	tag, err := s.db.Exec(ctx, stmt, args...)
	switch {
	case isUniqueViolation(err):
		return 0, repository.ErrConflict
	case err != nil:
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected(), nil
}

// mustTouch is write for statements that target one existing row.
func (s store) mustTouch(ctx context.Context, op string, q squirrel.Sqlizer) error {
	n, err := s.write(ctx, op, q)
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// one runs a single-row query and hands the row to scan. An empty result
// surfaces as repository.ErrNotFound.
func (s store) one(ctx context.Context, op string, q squirrel.Sqlizer, scan func(pgx.Row) error) error {
	stmt, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s sql: %w", op, err)
	}
	if err := scan(s.db.QueryRow(ctx, stmt, args...)); err != nil {
		if isNoRows(err) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// nullable trims value and maps nil or blank to SQL NULL.
func nullable(value *string) any {
	if value == nil {
		return nil
	}
	if trimmed := strings.TrimSpace(*value); trimmed != "" {
		return trimmed
	}
	return nil
}

func fromNull(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
