package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/core/port"
	"github.com/komiwalnut/AuthentiCute/internal/infra/security"
	"github.com/komiwalnut/AuthentiCute/internal/repository"
)

var errStoreDown = errors.New("connection refused")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]domain.User
	err   error

	createCalls         int
	updatePasswordCalls int
}

func newMockUserRepository(users ...domain.User) *mockUserRepository {
	repo := &mockUserRepository{users: make(map[string]domain.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *mockUserRepository) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.err != nil {
		return r.err
	}
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return repository.ErrConflict
		}
		if user.OAuthProvider != nil && existing.IsLinkedTo(*user.OAuthProvider, *user.OAuthID) {
			return repository.ErrConflict
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *mockUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *mockUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, user := range r.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *mockUserRepository) GetByOAuth(_ context.Context, provider, subject string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, user := range r.users {
		if user.IsLinkedTo(provider, subject) {
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *mockUserRepository) UpdateProfile(_ context.Context, id string, update domain.ProfileUpdate, at time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Phone != nil {
		user.Phone = nilIfEmpty(*update.Phone)
	}
	if update.Bio != nil {
		user.Bio = nilIfEmpty(*update.Bio)
	}
	user.UpdatedAt = at
	r.users[id] = user
	return &user, nil
}

func (r *mockUserRepository) UpdatePassword(_ context.Context, id string, passwordHash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updatePasswordCalls++
	if r.err != nil {
		return r.err
	}
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = &passwordHash
	user.UpdatedAt = at
	r.users[id] = user
	return nil
}

func (r *mockUserRepository) MarkVerified(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.IsVerified = true
	user.UpdatedAt = at
	r.users[id] = user
	return nil
}

func (r *mockUserRepository) LinkOAuth(_ context.Context, id string, identity domain.ExternalIdentity, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	provider, subject, email := identity.Provider, identity.Subject, identity.Email
	user.OAuthProvider = &provider
	user.OAuthID = &subject
	user.OAuthEmail = &email
	user.IsVerified = user.IsVerified || identity.EmailVerified
	user.UpdatedAt = at
	r.users[id] = user
	return nil
}

func (r *mockUserRepository) stored(t *testing.T, id string) domain.User {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		t.Fatalf("user %s not stored", id)
	}
	return user
}

func nilIfEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

type mockSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	err      error
}

func newMockSessionRepository() *mockSessionRepository {
	return &mockSessionRepository{sessions: make(map[string]domain.Session)}
}

func (r *mockSessionRepository) Create(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sessions[session.TokenHash] = session
	return nil
}

func (r *mockSessionRepository) FindValid(_ context.Context, tokenHash string, now time.Time) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	session, ok := r.sessions[tokenHash]
	if !ok || !session.ExpiresAt.After(now) {
		return nil, repository.ErrNotFound
	}
	return &session, nil
}

func (r *mockSessionRepository) Delete(_ context.Context, tokenHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.sessions[tokenHash]
	delete(r.sessions, tokenHash)
	return ok, nil
}

func (r *mockSessionRepository) DeleteAllForUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	count := 0
	for hash, session := range r.sessions {
		if session.UserID == userID {
			delete(r.sessions, hash)
			count++
		}
	}
	return count, nil
}

func (r *mockSessionRepository) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	count := 0
	for hash, session := range r.sessions {
		if !session.ExpiresAt.After(now) {
			delete(r.sessions, hash)
			count++
		}
	}
	return count, nil
}

func (r *mockSessionRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type mockTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]domain.EphemeralToken
	err    error

	createCalls int
}

func newMockTokenRepository() *mockTokenRepository {
	return &mockTokenRepository{tokens: make(map[string]domain.EphemeralToken)}
}

func (r *mockTokenRepository) Create(_ context.Context, token domain.EphemeralToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.err != nil {
		return r.err
	}
	r.tokens[token.TokenHash] = token
	return nil
}

func (r *mockTokenRepository) FindConsumable(_ context.Context, tokenHash string, kind domain.TokenKind, now time.Time) (*domain.EphemeralToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	token, ok := r.tokens[tokenHash]
	if !ok || token.Kind != kind || !token.IsConsumable(now) {
		return nil, repository.ErrNotFound
	}
	return &token, nil
}

// MarkUsedIfUnused mirrors UPDATE ... SET used = true WHERE used = false AND expires_at > now.
func (r *mockTokenRepository) MarkUsedIfUnused(_ context.Context, tokenHash string, kind domain.TokenKind, now time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	token, ok := r.tokens[tokenHash]
	if !ok || token.Kind != kind || !token.IsConsumable(now) {
		return "", repository.ErrNotFound
	}
	token.Used = true
	r.tokens[tokenHash] = token
	return token.UserID, nil
}

func (r *mockTokenRepository) DeleteSpent(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	count := 0
	for hash, token := range r.tokens {
		if token.IsSpent(now) {
			delete(r.tokens, hash)
			count++
		}
	}
	return count, nil
}

func (r *mockTokenRepository) forUser(userID string, kind domain.TokenKind) []domain.EphemeralToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EphemeralToken
	for _, token := range r.tokens {
		if token.UserID == userID && token.Kind == kind {
			out = append(out, token)
		}
	}
	return out
}

type sentMail struct {
	kind  domain.TokenKind
	to    string
	token string
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *mockNotifier) SendVerification(_ context.Context, to, token string) error {
	return n.record(domain.TokenKindVerification, to, token)
}

func (n *mockNotifier) SendPasswordReset(_ context.Context, to, token string) error {
	return n.record(domain.TokenKindReset, to, token)
}

func (n *mockNotifier) record(kind domain.TokenKind, to, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{kind: kind, to: to, token: token})
	return nil
}

func (n *mockNotifier) last(t *testing.T) sentMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		t.Fatalf("expected an email to be sent")
	}
	return n.sent[len(n.sent)-1]
}

type recordingPublisher struct {
	mu              sync.Mutex
	registered      []domain.UserRegisteredEvent
	verified        []domain.EmailVerifiedEvent
	passwordChanged []domain.PasswordChangedEvent
	resetRequested  []domain.PasswordResetRequestedEvent
	revoked         []domain.SessionRevokedEvent
	err             error
}

var _ port.EventPublisher = (*recordingPublisher)(nil)

func (p *recordingPublisher) Publish(_ context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch e := event.(type) {
	case domain.UserRegisteredEvent:
		p.registered = append(p.registered, e)
	case domain.EmailVerifiedEvent:
		p.verified = append(p.verified, e)
	case domain.PasswordChangedEvent:
		p.passwordChanged = append(p.passwordChanged, e)
	case domain.PasswordResetRequestedEvent:
		p.resetRequested = append(p.resetRequested, e)
	case domain.SessionRevokedEvent:
		p.revoked = append(p.revoked, e)
	}
	return p.err
}

type acceptingPasswordPolicy struct{}

func (acceptingPasswordPolicy) Validate(string, domain.PasswordContext) error { return nil }

type rejectingPasswordPolicy struct{ err error }

func (p rejectingPasswordPolicy) Validate(string, domain.PasswordContext) error {
	if p.err != nil {
		return p.err
	}
	return errors.New("password rejected")
}

// scriptedLimiter admits the first allow attempts and rejects the rest.
type scriptedLimiter struct {
	mu          sync.Mutex
	allow       int
	err         error
	identifiers []string
}

func (l *scriptedLimiter) Admit(_ context.Context, identifier string) (port.RateLimitDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.identifiers = append(l.identifiers, identifier)
	if l.err != nil {
		return port.RateLimitDecision{}, l.err
	}
	if l.allow <= 0 {
		return port.RateLimitDecision{Allowed: false, Limit: 5, RetryAfter: 42 * time.Second}, nil
	}
	l.allow--
	return port.RateLimitDecision{Allowed: true, Limit: 5, Remaining: l.allow}, nil
}

type stubIdentityProvider struct {
	identity domain.ExternalIdentity
	err      error
	codes    []string
}

func (p *stubIdentityProvider) Name() string { return domain.OAuthProviderGoogle }

func (p *stubIdentityProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + state
}

func (p *stubIdentityProvider) Exchange(_ context.Context, code string) (domain.ExternalIdentity, error) {
	p.codes = append(p.codes, code)
	if p.err != nil {
		return domain.ExternalIdentity{}, p.err
	}
	return p.identity, nil
}

func testHasher(t *testing.T) *security.Argon2Hasher {
	t.Helper()
	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	return hasher
}

func hashedPassword(t *testing.T, hasher port.PasswordHasher, password string) *string {
	t.Helper()
	hash, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &hash
}
