package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/usecase"
)

const (
	sessionTokenQueryParam = "session_token"

	userKey         = "auth_user"
	sessionKey      = "auth_session"
	sessionTokenKey = "auth_session_token"
)

// Authenticator resolves a bearer session token to its owner.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, *domain.Session, error)
}

// SessionTokenFromRequest extracts the session token from the Authorization
// header or, failing that, the session_token query parameter.
func SessionTokenFromRequest(c *gin.Context) string {
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(c.Query(sessionTokenQueryParam))
}

// RequireAuth rejects requests without a live session and stores the caller in the context.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionTokenFromRequest(c)
		if token == "" {
			AbortWithError(c, http.StatusUnauthorized, CodeAuth, "Missing session token", nil)
			return
		}

		user, session, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrInvalidSession):
				AbortWithError(c, http.StatusUnauthorized, CodeAuth, "Invalid session", nil)
			case errors.Is(err, usecase.ErrStorageUnavailable):
				_ = c.Error(err)
				AbortWithError(c, http.StatusServiceUnavailable, CodeServiceUnavailable, "Service temporarily unavailable", nil)
			default:
				_ = c.Error(err)
				AbortWithError(c, http.StatusInternalServerError, CodeInternal, "Authentication failed", nil)
			}
			return
		}

		c.Set(UserIDKey, user.ID)
		c.Set(userKey, user)
		c.Set(sessionKey, session)
		c.Set(sessionTokenKey, token)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.UserID = user.ID
		}

		c.Next()
	}
}

// GetAuthenticatedUserID retrieves the user ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}

	if id, ok := userID.(string); ok {
		return id, true
	}

	return "", false
}

// CurrentUser returns the user stored by RequireAuth.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	value, exists := c.Get(userKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*domain.User)
	return user, ok && user != nil
}

// CurrentSession returns the session stored by RequireAuth.
func CurrentSession(c *gin.Context) (*domain.Session, bool) {
	value, exists := c.Get(sessionKey)
	if !exists {
		return nil, false
	}
	session, ok := value.(*domain.Session)
	return session, ok && session != nil
}

// CurrentSessionToken returns the raw token RequireAuth accepted.
func CurrentSessionToken(c *gin.Context) string {
	return c.GetString(sessionTokenKey)
}
