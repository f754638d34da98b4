package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/komiwalnut/AuthentiCute/internal/transport/http/middleware"
	"github.com/komiwalnut/AuthentiCute/internal/usecase"
)

const (
	signupMessage         = "Account created successfully! Please check your email for verification."
	signupDeliveryWarning = "Email verification may be delayed. Please check your spam folder."
)

var (
	signupErrorCases = []ErrorCase{
		{Err: usecase.ErrEmailAlreadyRegistered, Status: http.StatusBadRequest, Code: middleware.CodeConflict, Message: "Email already registered"},
	}
	loginErrorCases = []ErrorCase{
		{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Code: middleware.CodeAuth, Message: "Invalid email or password"},
		{Err: usecase.ErrAccountDeactivated, Status: http.StatusUnauthorized, Code: middleware.CodeAuth, Message: "Account is deactivated"},
	}
	logoutErrorCases = []ErrorCase{
		{Err: usecase.ErrSessionNotFound, Status: http.StatusNotFound, Code: middleware.CodeNotFound, Message: "Session not found"},
	}
	verifyErrorCases = []ErrorCase{
		{Err: usecase.ErrInvalidToken, Status: http.StatusBadRequest, Code: middleware.CodeValidation, Message: "Invalid or expired verification token"},
	}
	resendErrorCases = []ErrorCase{
		{Err: usecase.ErrDeliveryFailed, Status: http.StatusInternalServerError, Code: middleware.CodeInternal, Message: "Failed to send verification email"},
	}
)

// AuthHandler exposes signup, login, logout and email verification.
type AuthHandler struct {
	auth AuthUseCase
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth AuthUseCase) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRoutes binds authentication routes. requireAuth guards the endpoints that need a session.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)
	r.POST("/logout-all", requireAuth, h.LogoutAll)
	r.GET("/verify-email", h.VerifyEmail)
	r.POST("/resend-verification", requireAuth, h.ResendVerification)
	r.GET("/me", requireAuth, h.Me)
}

// Signup registers a password account.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c, err)
		return
	}

	result, err := h.auth.Signup(c.Request.Context(), usecase.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Meta:     requestMeta(c),
	})
	if err != nil {
		RespondWithMappedError(c, err, signupErrorCases, "Failed to create account")
		return
	}

	resp := SignupResponse{Message: signupMessage}
	if !result.VerificationSent {
		resp.Warning = signupDeliveryWarning
	}
	c.JSON(http.StatusCreated, resp)
}

// Login exchanges credentials for a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c, err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, loginErrorCases, "Login failed")
		return
	}

	c.JSON(http.StatusOK, newSessionResponse(result.Session, result.User))
}

// Logout deletes the presented session.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.SessionTokenFromRequest(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, middleware.CodeAuth, "Missing session token"))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), token, requestMeta(c)); err != nil {
		RespondWithMappedError(c, err, logoutErrorCases, "Logout failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// LogoutAll deletes every session of the caller, the current one included.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, middleware.CodeAuth, "Invalid session"))
		return
	}

	revoked, err := h.auth.LogoutAll(c.Request.Context(), userID, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, nil, "Logout failed")
		return
	}

	c.JSON(http.StatusOK, LogoutAllResponse{Message: "Logged out from all sessions", Revoked: revoked})
}

// VerifyEmail consumes the token from a verification link.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, middleware.CodeValidation, "Verification token is required"))
		return
	}

	if err := h.auth.VerifyEmail(c.Request.Context(), token); err != nil {
		RespondWithMappedError(c, err, verifyErrorCases, "Email verification failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Email verified successfully!"})
}

// ResendVerification sends a fresh verification link to the caller.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, middleware.CodeAuth, "Invalid session"))
		return
	}

	sent, err := h.auth.ResendVerification(c.Request.Context(), *user, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, resendErrorCases, "Failed to send verification email")
		return
	}
	if !sent {
		c.JSON(http.StatusOK, MessageResponse{Message: "Email is already verified"})
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Verification email sent"})
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, middleware.CodeAuth, "Invalid session"))
		return
	}
	c.JSON(http.StatusOK, newUserResponse(*user))
}
