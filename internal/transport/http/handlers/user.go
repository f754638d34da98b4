package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/transport/http/middleware"
	"github.com/komiwalnut/AuthentiCute/internal/usecase"
)

var userErrorCases = []ErrorCase{
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Code: middleware.CodeNotFound, Message: "User not found"},
}

// UserHandler exposes profile endpoints. Every route requires a session.
type UserHandler struct {
	profiles ProfileUseCase
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(profiles ProfileUseCase) *UserHandler {
	return &UserHandler{profiles: profiles}
}

// RegisterRoutes binds the user routes. The group must already require authentication.
func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/profile", h.GetProfile)
	r.PUT("/profile", h.UpdateProfile)
	r.GET("/:id", h.GetUser)
}

// GetProfile returns the caller's own profile.
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, middleware.CodeAuth, "Invalid session"))
		return
	}
	c.JSON(http.StatusOK, newUserResponse(*user))
}

// UpdateProfile edits name, phone and bio of the caller.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, middleware.CodeAuth, "Invalid session"))
		return
	}

	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c, err)
		return
	}

	user, err := h.profiles.UpdateProfile(c.Request.Context(), userID, domain.ProfileUpdate{
		Name:  req.Name,
		Phone: req.Phone,
		Bio:   req.Bio,
	})
	if err != nil {
		RespondWithMappedError(c, err, userErrorCases, "Failed to update profile")
		return
	}

	c.JSON(http.StatusOK, newUserResponse(*user))
}

// GetUser returns the public view of another account.
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.profiles.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, userErrorCases, "Failed to load user")
		return
	}

	c.JSON(http.StatusOK, newPublicUserResponse(*user))
}
