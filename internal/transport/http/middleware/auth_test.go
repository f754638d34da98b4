package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/usecase"
)

type stubAuthenticator struct {
	token string
	err   error
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*domain.User, *domain.Session, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	if token != s.token {
		return nil, nil, usecase.ErrInvalidSession
	}
	return &domain.User{ID: "user-1", Email: "a@example.com"}, &domain.Session{ID: "session-1", UserID: "user-1"}, nil
}

func newAuthRouter(auth Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(EnrichContext())
	router.GET("/me", RequireAuth(auth), func(c *gin.Context) {
		user, _ := CurrentUser(c)
		session, _ := CurrentSession(c)
		c.JSON(http.StatusOK, gin.H{
			"user":    user.ID,
			"session": session.ID,
			"token":   CurrentSessionToken(c),
			"ctx":     GetRequestContext(c).UserID,
		})
	})
	return router
}

func TestRequireAuth(t *testing.T) {
	router := newAuthRouter(stubAuthenticator{token: "good"})

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{name: "bearer header", header: "Bearer good", status: http.StatusOK},
		{name: "lowercase scheme", header: "bearer good", status: http.StatusOK},
		{name: "query parameter", query: "?session_token=good", status: http.StatusOK},
		{name: "missing token", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", status: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer bad", status: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			require.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusOK {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Equal(t, "user-1", body["user"])
				assert.Equal(t, "session-1", body["session"])
				assert.Equal(t, "good", body["token"])
				assert.Equal(t, "user-1", body["ctx"])
				return
			}

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, CodeAuth, body.Error.Code)
			assert.NotEmpty(t, body.TraceID)
		})
	}
}

func TestRequireAuthStorageFailure(t *testing.T) {
	router := newAuthRouter(stubAuthenticator{err: errors.Join(usecase.ErrStorageUnavailable, errors.New("dial tcp"))})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded for", headers: map[string]string{"X-Forwarded-For": " 203.0.113.5 , 10.0.0.1"}, remote: "10.0.0.2:1234", want: "203.0.113.5"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "203.0.113.6"}, remote: "10.0.0.2:1234", want: "203.0.113.6"},
		{name: "remote addr", remote: "192.0.2.9:5555", want: "192.0.2.9"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Request.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, ClientIP(c))
		})
	}
}
