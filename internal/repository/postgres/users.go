package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/core/port"
)

var userColumns = []string{
	"id",
	"email",
	"name",
	"password_hash",
	"phone",
	"bio",
	"oauth_provider",
	"oauth_id",
	"oauth_email",
	"is_verified",
	"is_active",
	"created_at",
	"updated_at",
}

// UserRepository persists accounts. Emails are stored lower-cased.
type UserRepository struct {
	store
}

var _ port.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db pgExecutor) *UserRepository {
	return &UserRepository{store: newStore(db)}
}

// Create inserts user. A taken email or external identity yields repository.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	_, err := r.write(ctx, "insert user", r.sq.Insert(usersTable).
		Columns(userColumns...).
		Values(
			user.ID,
			user.Email,
			user.Name,
			nullable(user.PasswordHash),
			nullable(user.Phone),
			nullable(user.Bio),
			nullable(user.OAuthProvider),
			nullable(user.OAuthID),
			nullable(user.OAuthEmail),
			user.IsVerified,
			user.IsActive,
			user.CreatedAt,
			user.UpdatedAt,
		))
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.find(ctx, squirrel.Eq{"id": id})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.find(ctx, squirrel.Eq{"email": strings.ToLower(strings.TrimSpace(email))})
}

// GetByOAuth fetches the account linked to the provider subject.
func (r *UserRepository) GetByOAuth(ctx context.Context, provider, subject string) (*domain.User, error) {
	return r.find(ctx, squirrel.And{
		squirrel.Eq{"oauth_provider": provider},
		squirrel.Eq{"oauth_id": subject},
	})
}

func (r *UserRepository) find(ctx context.Context, where squirrel.Sqlizer) (*domain.User, error) {
	return r.returning(ctx, "select user", r.sq.Select(userColumns...).From(usersTable).Where(where).Limit(1))
}

func (r *UserRepository) returning(ctx context.Context, op string, q squirrel.Sqlizer) (*domain.User, error) {
	var user domain.User
	if err := r.one(ctx, op, q, func(row pgx.Row) error { return scanUser(row, &user) }); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile applies the non-nil fields of update and returns the stored row.
// Blank phone or bio values clear the column.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate, at time.Time) (*domain.User, error) {
	query := r.sq.Update(usersTable)
	if update.Name != nil {
		query = query.Set("name", strings.TrimSpace(*update.Name))
	}
	if update.Phone != nil {
		query = query.Set("phone", nullable(update.Phone))
	}
	if update.Bio != nil {
		query = query.Set("bio", nullable(update.Bio))
	}

	return r.returning(ctx, "update profile", query.
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING "+strings.Join(userColumns, ", ")))
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, at time.Time) error {
	return r.mustTouch(ctx, "update password", r.sq.Update(usersTable).
		Set("password_hash", passwordHash).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}))
}

func (r *UserRepository) MarkVerified(ctx context.Context, id string, at time.Time) error {
	return r.mustTouch(ctx, "mark user verified", r.sq.Update(usersTable).
		Set("is_verified", true).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}))
}

// LinkOAuth binds an external identity to an existing account. A verified
// provider email also marks the account verified.
func (r *UserRepository) LinkOAuth(ctx context.Context, id string, identity domain.ExternalIdentity, at time.Time) error {
	return r.mustTouch(ctx, "link oauth identity", r.sq.Update(usersTable).
		Set("oauth_provider", identity.Provider).
		Set("oauth_id", identity.Subject).
		Set("oauth_email", identity.Email).
		Set("is_verified", squirrel.Expr("is_verified OR ?", identity.EmailVerified)).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}))
}

func scanUser(row pgx.Row, user *domain.User) error {
	var passwordHash, phone, bio, oauthProvider, oauthID, oauthEmail sql.NullString
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&passwordHash,
		&phone,
		&bio,
		&oauthProvider,
		&oauthID,
		&oauthEmail,
		&user.IsVerified,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return err
	}

	user.PasswordHash = fromNull(passwordHash)
	user.Phone = fromNull(phone)
	user.Bio = fromNull(bio)
	user.OAuthProvider = fromNull(oauthProvider)
	user.OAuthID = fromNull(oauthID)
	user.OAuthEmail = fromNull(oauthEmail)
	return nil
}
