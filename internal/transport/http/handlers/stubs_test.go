package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/transport/http/middleware"
	"github.com/komiwalnut/AuthentiCute/internal/usecase"
)

const validToken = "valid-session-token"

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testUser() *domain.User {
	bio := "hello"
	hash := "$argon2id$stub"
	return &domain.User{
		ID:           "5f0c6a57-8d8e-4c43-9b0b-0d7d3c1b2a10",
		Email:        "alice@example.com",
		Name:         "Alice",
		Bio:          &bio,
		PasswordHash: &hash,
		IsVerified:   true,
		IsActive:     true,
		CreatedAt:    fixedTime,
		UpdatedAt:    fixedTime,
	}
}

type stubAuth struct {
	user *domain.User

	signupInput  usecase.SignupInput
	signupResult *usecase.SignupResult
	signupErr    error

	loginErr error

	logoutToken string
	logoutErr   error

	revoked int

	verifyToken string
	verifyErr   error

	resendSent bool
	resendErr  error
}

func (s *stubAuth) Signup(_ context.Context, input usecase.SignupInput) (*usecase.SignupResult, error) {
	s.signupInput = input
	if s.signupErr != nil {
		return nil, s.signupErr
	}
	if s.signupResult != nil {
		return s.signupResult, nil
	}
	return &usecase.SignupResult{User: *s.user, VerificationSent: true}, nil
}

func (s *stubAuth) Login(_ context.Context, _, _ string, _ usecase.RequestMeta) (*usecase.LoginResult, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &usecase.LoginResult{
		Session: domain.IssuedSession{
			Session: domain.Session{ID: "session-1", UserID: s.user.ID, CreatedAt: fixedTime, ExpiresAt: fixedTime.Add(24 * time.Hour)},
			Token:   "issued-token",
		},
		User: *s.user,
	}, nil
}

func (s *stubAuth) Logout(_ context.Context, token string, _ usecase.RequestMeta) error {
	s.logoutToken = token
	return s.logoutErr
}

func (s *stubAuth) LogoutAll(_ context.Context, _ string, _ usecase.RequestMeta) (int, error) {
	return s.revoked, nil
}

func (s *stubAuth) VerifyEmail(_ context.Context, token string) error {
	s.verifyToken = token
	return s.verifyErr
}

func (s *stubAuth) ResendVerification(_ context.Context, _ domain.User, _ usecase.RequestMeta) (bool, error) {
	return s.resendSent, s.resendErr
}

func (s *stubAuth) Authenticate(_ context.Context, token string) (*domain.User, *domain.Session, error) {
	if token != validToken {
		return nil, nil, usecase.ErrInvalidSession
	}
	return s.user, &domain.Session{ID: "session-1", UserID: s.user.ID, ExpiresAt: fixedTime.Add(time.Hour)}, nil
}

type stubPasswords struct {
	forgotEmail string
	forgotErr   error
	resetErr    error
}

func (s *stubPasswords) ForgotPassword(_ context.Context, email string, _ usecase.RequestMeta) error {
	s.forgotEmail = email
	return s.forgotErr
}

func (s *stubPasswords) ResetPassword(_ context.Context, _, _ string, _ usecase.RequestMeta) (*usecase.PasswordResetResult, error) {
	if s.resetErr != nil {
		return nil, s.resetErr
	}
	return &usecase.PasswordResetResult{SessionsRevoked: 2}, nil
}

type stubProfiles struct {
	users  map[string]*domain.User
	update domain.ProfileUpdate
	err    error
}

func (s *stubProfiles) GetUser(_ context.Context, id string) (*domain.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return nil, usecase.ErrUserNotFound
	}
	return user, nil
}

func (s *stubProfiles) UpdateProfile(_ context.Context, userID string, update domain.ProfileUpdate) (*domain.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.update = update
	user := *s.users[userID]
	if update.Bio != nil {
		user.Bio = update.Bio
	}
	return &user, nil
}

type stubOAuth struct {
	enabled     bool
	state       string
	completeErr error
	code        string
	user        *domain.User
}

func (s *stubOAuth) Enabled() bool { return s.enabled }

func (s *stubOAuth) Begin() (string, string, error) {
	if !s.enabled {
		return "", "", usecase.ErrOAuthUnavailable
	}
	return "https://accounts.example.com/o/oauth2/auth?state=" + s.state, s.state, nil
}

func (s *stubOAuth) Complete(_ context.Context, code string, _ usecase.RequestMeta) (*usecase.LoginResult, error) {
	s.code = code
	if s.completeErr != nil {
		return nil, s.completeErr
	}
	return &usecase.LoginResult{
		Session: domain.IssuedSession{Token: "oauth-token", Session: domain.Session{ExpiresAt: fixedTime.Add(24 * time.Hour)}},
		User:    *s.user,
	}, nil
}

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.EnrichContext())
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func bearer(token string) []string {
	return []string{"Authorization", "Bearer " + token}
}
