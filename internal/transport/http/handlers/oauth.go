package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/komiwalnut/AuthentiCute/internal/transport/http/middleware"
	"github.com/komiwalnut/AuthentiCute/internal/usecase"
)

const (
	oauthStateCookie     = "oauth_state"
	defaultOAuthStateTTL = 10 * time.Minute
)

var oauthErrorCases = []ErrorCase{
	{Err: usecase.ErrOAuthUnavailable, Status: http.StatusServiceUnavailable, Code: middleware.CodeServiceUnavailable, Message: "Google sign-in is not configured"},
	{Err: usecase.ErrOAuthFailed, Status: http.StatusUnauthorized, Code: middleware.CodeAuth, Message: "Google authentication failed"},
	{Err: usecase.ErrAccountDeactivated, Status: http.StatusUnauthorized, Code: middleware.CodeAuth, Message: "Account is deactivated"},
}

// OAuthHandler runs the Google authorization code flow.
type OAuthHandler struct {
	oauth        OAuthUseCase
	stateTTL     time.Duration
	secureCookie bool
}

// OAuthHandlerOption customises OAuthHandler.
type OAuthHandlerOption func(*OAuthHandler)

// WithStateTTL bounds how long a started sign-in may take.
func WithStateTTL(ttl time.Duration) OAuthHandlerOption {
	return func(h *OAuthHandler) {
		if ttl > 0 {
			h.stateTTL = ttl
		}
	}
}

// WithSecureCookie marks the state cookie Secure. Enable outside local development.
func WithSecureCookie(secure bool) OAuthHandlerOption {
	return func(h *OAuthHandler) {
		h.secureCookie = secure
	}
}

// NewOAuthHandler constructs OAuthHandler.
func NewOAuthHandler(oauth OAuthUseCase, opts ...OAuthHandlerOption) *OAuthHandler {
	h := &OAuthHandler{oauth: oauth, stateTTL: defaultOAuthStateTTL}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes binds the OAuth routes.
func (h *OAuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/google", h.Start)
	r.GET("/google/callback", h.Callback)
}

// Start redirects the browser to the provider consent screen.
func (h *OAuthHandler) Start(c *gin.Context) {
	authURL, state, err := h.oauth.Begin()
	if err != nil {
		RespondWithMappedError(c, err, oauthErrorCases, "Failed to start Google sign-in")
		return
	}

	h.setStateCookie(c, state, int(h.stateTTL/time.Second))
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// Callback completes sign-in and returns a session.
func (h *OAuthHandler) Callback(c *gin.Context) {
	if !h.oauth.Enabled() {
		RespondWithMappedError(c, usecase.ErrOAuthUnavailable, oauthErrorCases, "Google sign-in is not configured")
		return
	}

	expected, _ := c.Cookie(oauthStateCookie)
	h.setStateCookie(c, "", -1)

	if !usecase.VerifyState(expected, c.Query("state")) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, middleware.CodeAuth, "Invalid OAuth state"))
		return
	}
	if reason := c.Query("error"); reason != "" {
		c.JSON(http.StatusUnauthorized, middleware.NewErrorResponse(c, middleware.CodeAuth, "Google authentication was cancelled", map[string]any{
			"reason": reason,
		}))
		return
	}

	result, err := h.oauth.Complete(c.Request.Context(), c.Query("code"), requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, oauthErrorCases, "Google authentication failed")
		return
	}

	c.JSON(http.StatusOK, newSessionResponse(result.Session, result.User))
}

func (h *OAuthHandler) setStateCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, value, maxAge, "/api/auth/google", "", h.secureCookie, true)
}
