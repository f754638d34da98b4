package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/transport/http/middleware"
	"github.com/komiwalnut/AuthentiCute/internal/usecase"
)

// ErrorResponse is the error envelope shared with the middleware.
type ErrorResponse = middleware.ErrorResponse

// NewErrorResponse creates an error envelope stamped with the trace id from context.
func NewErrorResponse(c *gin.Context, code, message string) ErrorResponse {
	return middleware.NewErrorResponse(c, code, message, nil)
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// SignupRequest defines the account registration payload.
type SignupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SignupResponse confirms account creation. Warning is set when the verification email could not be sent.
type SignupResponse struct {
	Message string `json:"message"`
	Warning string `json:"warning,omitempty"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserResponse is the owner view of an account.
type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          *string   `json:"name"`
	Phone         *string   `json:"phone"`
	Bio           *string   `json:"bio"`
	IsVerified    bool      `json:"is_verified"`
	IsActive      bool      `json:"is_active"`
	OAuthProvider *string   `json:"oauth_provider,omitempty"`
	HasPassword   bool      `json:"has_password"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PublicUserResponse is what other authenticated users may see about an account.
type PublicUserResponse struct {
	ID         string    `json:"id"`
	Name       *string   `json:"name"`
	Bio        *string   `json:"bio"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

// SessionResponse is returned by every endpoint that signs a user in.
type SessionResponse struct {
	SessionToken string       `json:"session_token"`
	TokenType    string       `json:"token_type"`
	ExpiresAt    time.Time    `json:"expires_at"`
	ExpiresIn    int64        `json:"expires_in"`
	User         UserResponse `json:"user"`
}

// LogoutAllResponse reports how many sessions were revoked.
type LogoutAllResponse struct {
	Message string `json:"message"`
	Revoked int    `json:"revoked"`
}

// ForgotPasswordRequest starts a password reset.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest completes a password reset.
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ProfileUpdateRequest carries optional profile changes. Absent fields are left untouched.
type ProfileUpdateRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Bio   *string `json:"bio"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	StartedAt time.Time `json:"started_at"`
}

// ReadyResponse reports the state of each dependency.
type ReadyResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Checks  map[string]string `json:"checks"`
}

func newUserResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		Name:          optionalName(user.Name),
		Phone:         user.Phone,
		Bio:           user.Bio,
		IsVerified:    user.IsVerified,
		IsActive:      user.IsActive,
		OAuthProvider: user.OAuthProvider,
		HasPassword:   user.HasPassword(),
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

func newPublicUserResponse(user domain.User) PublicUserResponse {
	return PublicUserResponse{
		ID:         user.ID,
		Name:       optionalName(user.Name),
		Bio:        user.Bio,
		IsVerified: user.IsVerified,
		CreatedAt:  user.CreatedAt,
	}
}

func newSessionResponse(session domain.IssuedSession, user domain.User) SessionResponse {
	return SessionResponse{
		SessionToken: session.Token,
		TokenType:    "Bearer",
		ExpiresAt:    session.ExpiresAt,
		ExpiresIn:    int64(session.Remaining(session.CreatedAt) / time.Second),
		User:         newUserResponse(user),
	}
}

func optionalName(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}

func requestMeta(c *gin.Context) usecase.RequestMeta {
	reqCtx := middleware.GetRequestContext(c)
	return usecase.RequestMeta{IP: reqCtx.IP, UserAgent: reqCtx.UserAgent}
}
