package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komiwalnut/AuthentiCute/internal/usecase"
)

func newOAuthRouter(oauth *stubOAuth) *gin.Engine {
	r := newTestEngine()
	NewOAuthHandler(oauth, WithStateTTL(5*time.Minute), WithSecureCookie(true)).RegisterRoutes(r.Group("/api/auth"))
	return r
}

func callback(r http.Handler, query, cookieState string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?"+query, nil)
	if cookieState != "" {
		req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: cookieState})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOAuthStart(t *testing.T) {
	t.Run("redirects with state cookie", func(t *testing.T) {
		w := doJSON(t, newOAuthRouter(&stubOAuth{enabled: true, state: "s1"}), http.MethodGet, "/api/auth/google", nil)

		require.Equal(t, http.StatusTemporaryRedirect, w.Code)
		assert.Equal(t, "https://accounts.example.com/o/oauth2/auth?state=s1", w.Header().Get("Location"))

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, oauthStateCookie, cookies[0].Name)
		assert.Equal(t, "s1", cookies[0].Value)
		assert.Equal(t, 300, cookies[0].MaxAge)
		assert.True(t, cookies[0].HttpOnly)
		assert.True(t, cookies[0].Secure)
	})

	t.Run("not configured", func(t *testing.T) {
		w := doJSON(t, newOAuthRouter(&stubOAuth{}), http.MethodGet, "/api/auth/google", nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestOAuthCallback(t *testing.T) {
	t.Run("issues session", func(t *testing.T) {
		oauth := &stubOAuth{enabled: true, user: testUser()}
		w := callback(newOAuthRouter(oauth), "code=xyz&state=s1", "s1")

		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[SessionResponse](t, w)
		assert.Equal(t, "oauth-token", resp.SessionToken)
		assert.Equal(t, "xyz", oauth.code)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Negative(t, cookies[0].MaxAge)
	})

	t.Run("state mismatch", func(t *testing.T) {
		oauth := &stubOAuth{enabled: true, user: testUser()}
		w := callback(newOAuthRouter(oauth), "code=xyz&state=forged", "s1")

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid OAuth state", decode[ErrorResponse](t, w).Error.Message)
		assert.Empty(t, oauth.code)
	})

	t.Run("missing cookie", func(t *testing.T) {
		oauth := &stubOAuth{enabled: true, user: testUser()}
		w := callback(newOAuthRouter(oauth), "code=xyz&state=s1", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, oauth.code)
	})

	t.Run("consent denied", func(t *testing.T) {
		oauth := &stubOAuth{enabled: true, user: testUser()}
		w := callback(newOAuthRouter(oauth), "error=access_denied&state=s1", "s1")

		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "access_denied", decode[ErrorResponse](t, w).Error.Details["reason"])
	})

	t.Run("exchange failure", func(t *testing.T) {
		oauth := &stubOAuth{enabled: true, user: testUser(), completeErr: usecase.ErrOAuthFailed}
		w := callback(newOAuthRouter(oauth), "code=xyz&state=s1", "s1")

		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Google authentication failed", decode[ErrorResponse](t, w).Error.Message)
	})
}
