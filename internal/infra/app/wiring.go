package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/komiwalnut/AuthentiCute/internal/core/port"
	"github.com/komiwalnut/AuthentiCute/internal/infra/config"
	"github.com/komiwalnut/AuthentiCute/internal/infra/email"
	kafkainfra "github.com/komiwalnut/AuthentiCute/internal/infra/kafka"
	"github.com/komiwalnut/AuthentiCute/internal/infra/oauth"
	"github.com/komiwalnut/AuthentiCute/internal/infra/ratelimit"
	"github.com/komiwalnut/AuthentiCute/internal/infra/telemetry"
	redisrepo "github.com/komiwalnut/AuthentiCute/internal/repository/redis"
	"github.com/komiwalnut/AuthentiCute/internal/usecase"
)

// limiterSet is the result of buildLimiters. registry holds the raw limiters so
// the sweeper can reclaim in-process windows; the instrumented ones go to services.
type limiterSet struct {
	registry *ratelimit.Registry
	services usecase.Limiters
	api      port.RateLimiter
}

// buildLimiters creates one limiter per scope on the configured backend.
// A scope with max_requests of zero is left unlimited.
func buildLimiters(cfg config.RateLimitSettings, redisClient redis.Scripter, keyPrefix string, metrics *telemetry.Metrics) (*limiterSet, error) {
	registry := ratelimit.NewRegistry()

	scopes := []struct {
		preset   ratelimit.Config
		settings config.LimitSettings
	}{
		{ratelimit.LoginConfig(), cfg.Login},
		{ratelimit.SignupConfig(), cfg.Signup},
		{ratelimit.PasswordResetConfig(), cfg.PasswordReset},
		{ratelimit.Config{Name: port.ScopeAPI}, cfg.API},
	}

	for _, scope := range scopes {
		if scope.settings.MaxRequests <= 0 {
			continue
		}
		limitCfg := applyLimitSettings(scope.preset, scope.settings, cfg.SweepInterval)

		var (
			limiter port.RateLimiter
			err     error
		)
		switch cfg.Backend {
		case "redis":
			if redisClient == nil {
				return nil, fmt.Errorf("rate limit %s: redis backend requires a redis client", limitCfg.Name)
			}
			limiter, err = redisrepo.NewRateLimitRepository(redisClient, redisrepo.SlidingWindowConfig{
				KeyPrefix:   keyPrefix + ":rate-limit:" + limitCfg.Name,
				MaxRequests: limitCfg.MaxRequests,
				Window:      limitCfg.Window,
			})
		default:
			limiter, err = ratelimit.NewSlidingWindow(limitCfg)
		}
		if err != nil {
			return nil, fmt.Errorf("rate limit %s: %w", limitCfg.Name, err)
		}
		registry.Register(limitCfg.Name, limiter)
	}

	set := &limiterSet{
		registry: registry,
		services: usecase.Limiters{
			Login:         metrics.InstrumentRateLimiter(port.ScopeLogin, registry.Limiter(port.ScopeLogin)),
			Signup:        metrics.InstrumentRateLimiter(port.ScopeSignup, registry.Limiter(port.ScopeSignup)),
			PasswordReset: metrics.InstrumentRateLimiter(port.ScopePasswordReset, registry.Limiter(port.ScopePasswordReset)),
		},
	}
	if cfg.API.MaxRequests > 0 {
		set.api = metrics.InstrumentRateLimiter(port.ScopeAPI, registry.Limiter(port.ScopeAPI))
	}
	return set, nil
}

func applyLimitSettings(preset ratelimit.Config, settings config.LimitSettings, sweepInterval time.Duration) ratelimit.Config {
	preset.MaxRequests = settings.MaxRequests
	if settings.Window > 0 {
		preset.Window = settings.Window
	}
	preset.SweepInterval = sweepInterval
	return preset
}

// buildEmailSender returns the configured transport wrapped with delivery metrics.
func buildEmailSender(cfg config.MailSettings, metrics *telemetry.Metrics, log *zap.Logger) (port.EmailSender, error) {
	var sender port.EmailSender
	switch cfg.Provider {
	case "mailgun":
		mailgun, err := email.NewMailgunSender(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("init mailgun sender: %w", err)
		}
		sender = mailgun
	default:
		log.Info("mail provider not configured, emails will be logged only")
		sender = email.NewLogSender(log)
	}
	return metrics.InstrumentEmailSender(sender), nil
}

// buildEventPublisher returns a Kafka publisher when brokers are configured and
// a log publisher otherwise. The producer is nil unless Kafka is in use.
func buildEventPublisher(cfg *config.AppConfig, metrics *telemetry.Metrics, log *zap.Logger) (port.EventPublisher, *kafkainfra.Producer) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, events will be logged only")
		return metrics.InstrumentEventPublisher(kafkainfra.NewLogPublisher(log)), nil
	}

	producer, err := kafkainfra.NewProducer(cfg.Kafka, metrics.ObserveEventDeliveryFailure, log)
	if err != nil {
		log.Warn("kafka unavailable, events will be logged only", zap.Error(err))
		return metrics.InstrumentEventPublisher(kafkainfra.NewLogPublisher(log)), nil
	}

	log.Info("publishing events to kafka",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic_prefix", cfg.Kafka.TopicPrefix),
	)
	return metrics.InstrumentEventPublisher(kafkainfra.NewPublisher(producer, cfg.App.Name)), producer
}

// buildIdentityProvider returns the Google provider, or nil when it has no credentials.
func buildIdentityProvider(cfg config.OAuthProviderSettings, log *zap.Logger) (port.IdentityProvider, error) {
	if !cfg.Enabled() {
		log.Info("google oauth not configured")
		return nil, nil
	}
	provider, err := oauth.NewGoogleProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("init google provider: %w", err)
	}
	return provider, nil
}

func sweepLimiters(registry *ratelimit.Registry) SweepFunc {
	return func(context.Context) (int, error) {
		return registry.Sweep(), nil
	}
}
