package app

import (
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	red "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/core/port"
	"github.com/komiwalnut/AuthentiCute/internal/infra/config"
	"github.com/komiwalnut/AuthentiCute/internal/infra/ratelimit"
	"github.com/komiwalnut/AuthentiCute/internal/infra/telemetry"
)

func testMetrics() *telemetry.Metrics {
	return telemetry.NewMetrics(prometheus.NewRegistry())
}

func rateLimitSettings(backend string) config.RateLimitSettings {
	return config.RateLimitSettings{
		Backend:       backend,
		SweepInterval: time.Minute,
		Login:         config.LimitSettings{MaxRequests: 2, Window: time.Minute},
		Signup:        config.LimitSettings{MaxRequests: 0},
		PasswordReset: config.LimitSettings{MaxRequests: 3, Window: 5 * time.Minute},
	}
}

func TestBuildLimitersMemoryBackend(t *testing.T) {
	set, err := buildLimiters(rateLimitSettings("memory"), nil, "authenticute", testMetrics())
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		decision, err := set.services.Login.Admit(ctx, "a@example.com:127.0.0.1")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	}
	decision, err := set.services.Login.Admit(ctx, "a@example.com:127.0.0.1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	for i := 0; i < 10; i++ {
		decision, err := set.services.Signup.Admit(ctx, "127.0.0.1")
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "disabled scope admits everything")
	}

	assert.Nil(t, set.api)
	assert.Equal(t, []string{port.ScopeLogin, port.ScopePasswordReset}, set.registry.Scopes())
}

func TestBuildLimitersAPIScope(t *testing.T) {
	settings := rateLimitSettings("memory")
	settings.API = config.LimitSettings{MaxRequests: 100, Window: time.Minute}

	set, err := buildLimiters(settings, nil, "authenticute", testMetrics())
	require.NoError(t, err)
	require.NotNil(t, set.api)

	decision, err := set.api.Admit(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 100, decision.Limit)
}

func TestBuildLimitersRedisBackend(t *testing.T) {
	server := miniredis.RunT(t)
	client := red.NewClient(&red.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	set, err := buildLimiters(rateLimitSettings("redis"), client, "authenticute", testMetrics())
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		decision, err := set.services.Login.Admit(ctx, "a@example.com:127.0.0.1")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	}
	decision, err := set.services.Login.Admit(ctx, "a@example.com:127.0.0.1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	keys := server.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "authenticute:rate-limit:login:"), keys[0])
}

func TestBuildLimitersRedisBackendRequiresClient(t *testing.T) {
	_, err := buildLimiters(rateLimitSettings("redis"), nil, "authenticute", testMetrics())
	require.Error(t, err)
}

func TestApplyLimitSettings(t *testing.T) {
	cfg := applyLimitSettings(ratelimit.LoginConfig(), config.LimitSettings{MaxRequests: 10}, 30*time.Second)

	assert.Equal(t, port.ScopeLogin, cfg.Name)
	assert.Equal(t, 10, cfg.MaxRequests)
	assert.Equal(t, time.Minute, cfg.Window, "zero window keeps the preset")
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
}

func TestSweepLimitersReclaimsIdleWindows(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter, err := ratelimit.NewSlidingWindow(ratelimit.LoginConfig())
	require.NoError(t, err)
	limiter.WithClock(func() time.Time { return now })

	registry := ratelimit.NewRegistry()
	registry.Register(port.ScopeLogin, limiter)

	_, err = limiter.Admit(context.Background(), "a@example.com:127.0.0.1")
	require.NoError(t, err)

	sweep := sweepLimiters(registry)
	removed, err := sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)

	now = now.Add(time.Minute)
	removed, err = sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Zero(t, limiter.Tracked())
}

func TestBuildEmailSender(t *testing.T) {
	log := zaptest.NewLogger(t)

	sender, err := buildEmailSender(config.MailSettings{Provider: "log"}, testMetrics(), log)
	require.NoError(t, err)
	assert.NotNil(t, sender)

	_, err = buildEmailSender(config.MailSettings{Provider: "mailgun"}, testMetrics(), log)
	require.Error(t, err)
}

func TestBuildEventPublisherWithoutBrokers(t *testing.T) {
	events, producer := buildEventPublisher(&config.AppConfig{}, testMetrics(), zaptest.NewLogger(t))

	assert.Nil(t, producer)
	require.NotNil(t, events)
	assert.NoError(t, events.Publish(context.Background(), domain.EmailVerifiedEvent{
		EventHeader: domain.EventHeader{UserID: "user-1"},
	}))
}

func TestBuildIdentityProvider(t *testing.T) {
	log := zaptest.NewLogger(t)

	provider, err := buildIdentityProvider(config.OAuthProviderSettings{}, log)
	require.NoError(t, err)
	assert.Nil(t, provider)

	provider, err = buildIdentityProvider(config.OAuthProviderSettings{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8000/api/auth/google/callback",
	}, log)
	require.NoError(t, err)
	assert.NotNil(t, provider)
}
