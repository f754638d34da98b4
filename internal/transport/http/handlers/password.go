package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/komiwalnut/AuthentiCute/internal/transport/http/middleware"
	"github.com/komiwalnut/AuthentiCute/internal/usecase"
)

const forgotPasswordMessage = "If the email exists, a password reset link has been sent."

var (
	forgotErrorCases = []ErrorCase{
		{Err: usecase.ErrDeliveryFailed, Status: http.StatusInternalServerError, Code: middleware.CodeInternal, Message: "Failed to send reset email"},
	}
	resetErrorCases = []ErrorCase{
		{Err: usecase.ErrInvalidToken, Status: http.StatusBadRequest, Code: middleware.CodeValidation, Message: "Invalid or expired reset token"},
	}
)

// PasswordHandler exposes the forgotten password flow.
type PasswordHandler struct {
	passwords PasswordUseCase
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(passwords PasswordUseCase) *PasswordHandler {
	return &PasswordHandler{passwords: passwords}
}

// RegisterRoutes binds the password routes.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/forgot-password", h.ForgotPassword)
	r.POST("/reset-password", h.ResetPassword)
}

// ForgotPassword emails a reset link. The answer is the same whether or not the account exists.
func (h *PasswordHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c, err)
		return
	}

	if err := h.passwords.ForgotPassword(c.Request.Context(), req.Email, requestMeta(c)); err != nil {
		RespondWithMappedError(c, err, forgotErrorCases, "Failed to process password reset")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: forgotPasswordMessage})
}

// ResetPassword sets a new password using a reset token and signs the user out everywhere.
func (h *PasswordHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c, err)
		return
	}

	if _, err := h.passwords.ResetPassword(c.Request.Context(), req.Token, req.NewPassword, requestMeta(c)); err != nil {
		RespondWithMappedError(c, err, resetErrorCases, "Failed to reset password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Password reset successfully!"})
}
