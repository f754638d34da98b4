package handlers

import (
	"context"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/usecase"
)

// AuthUseCase is the account and session surface the auth handler drives.
type AuthUseCase interface {
	Signup(ctx context.Context, input usecase.SignupInput) (*usecase.SignupResult, error)
	Login(ctx context.Context, email, password string, meta usecase.RequestMeta) (*usecase.LoginResult, error)
	Logout(ctx context.Context, token string, meta usecase.RequestMeta) error
	LogoutAll(ctx context.Context, userID string, meta usecase.RequestMeta) (int, error)
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, user domain.User, meta usecase.RequestMeta) (bool, error)
}

// PasswordUseCase covers forgotten password recovery.
type PasswordUseCase interface {
	ForgotPassword(ctx context.Context, email string, meta usecase.RequestMeta) error
	ResetPassword(ctx context.Context, token, newPassword string, meta usecase.RequestMeta) (*usecase.PasswordResetResult, error)
}

// ProfileUseCase reads and edits profiles.
type ProfileUseCase interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.User, error)
}

// OAuthUseCase drives the external sign-in flow.
type OAuthUseCase interface {
	Enabled() bool
	Begin() (authURL, state string, err error)
	Complete(ctx context.Context, code string, meta usecase.RequestMeta) (*usecase.LoginResult, error)
}

var (
	_ AuthUseCase     = (*usecase.AuthService)(nil)
	_ PasswordUseCase = (*usecase.PasswordService)(nil)
	_ ProfileUseCase  = (*usecase.ProfileService)(nil)
	_ OAuthUseCase    = (*usecase.OAuthService)(nil)
)
