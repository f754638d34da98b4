package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/komiwalnut/AuthentiCute/internal/infra/config"
	"github.com/komiwalnut/AuthentiCute/internal/infra/database"
	"github.com/komiwalnut/AuthentiCute/internal/infra/email"
	kafkainfra "github.com/komiwalnut/AuthentiCute/internal/infra/kafka"
	"github.com/komiwalnut/AuthentiCute/internal/infra/logger"
	redisinfra "github.com/komiwalnut/AuthentiCute/internal/infra/redis"
	"github.com/komiwalnut/AuthentiCute/internal/infra/security"
	"github.com/komiwalnut/AuthentiCute/internal/infra/telemetry"
	postgresrepo "github.com/komiwalnut/AuthentiCute/internal/repository/postgres"
	"github.com/komiwalnut/AuthentiCute/internal/transport/http/middleware"
	"github.com/komiwalnut/AuthentiCute/internal/transport/http/routes"
	"github.com/komiwalnut/AuthentiCute/internal/usecase"
)

// Version is reported as the service version in traces. Overridden at link time.
var Version = "dev"

const shutdownTimeout = 10 * time.Second

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracing  *telemetry.Tracing
	sweeper  *Sweeper
}

// New builds every dependency from cfg. Resources acquired before a failure are released.
func New(ctx context.Context, cfg *config.AppConfig) (_ *Application, err error) {
	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	var tracerProvider trace.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		a.tracing, err = telemetry.NewTracing(ctx, cfg.Telemetry, Version, log)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		a.tracing.Install()
		tracerProvider = a.tracing.Provider()
	}

	a.pool, err = database.Connect(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	if cfg.Postgres.AutoMigrate {
		if err := runMigrations(cfg.Postgres.DSN(), log); err != nil {
			return nil, err
		}
	}

	var scripter redis.Scripter
	if cfg.Redis.Enabled {
		a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		scripter = a.redis.Client()
	}

	metrics := telemetry.NewMetrics(nil)
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	limiters, err := buildLimiters(cfg.RateLimit, scripter, cfg.Redis.KeyPrefix, metrics)
	if err != nil {
		return nil, err
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	policy := security.NewPasswordPolicy(security.PasswordPolicyConfig{
		MinLength:           cfg.Password.MinLength,
		MaxLength:           cfg.Password.MaxLength,
		MinCharacterClasses: cfg.Password.MinCharacterClasses,
		MinStrengthScore:    cfg.Password.MinStrengthScore,
	})

	sender, err := buildEmailSender(cfg.Mail, metrics, log)
	if err != nil {
		return nil, err
	}
	notifier := email.NewNotifier(sender, cfg.App.BaseURL, cfg.Tokens.ResetTTL, log)

	events, producer := buildEventPublisher(cfg, metrics, log)
	a.producer = producer

	identityProvider, err := buildIdentityProvider(cfg.OAuth.Google, log)
	if err != nil {
		return nil, err
	}

	repos := postgresrepo.NewRepositories(a.pool)

	sessionService := usecase.NewSessionService(repos.Sessions, cfg.Session.TTL, cfg.Session.TokenBytes)
	tokenService := usecase.NewTokenService(repos.Tokens, usecase.TokenSettings{
		VerificationTTL: cfg.Tokens.VerificationTTL,
		ResetTTL:        cfg.Tokens.ResetTTL,
		TokenBytes:      cfg.Tokens.TokenBytes,
	})

	authService := usecase.NewAuthService(repos.Users, hasher, policy, sessionService, tokenService, notifier, events, limiters.services, log)
	passwordService := usecase.NewPasswordService(repos.Users, hasher, policy, sessionService, tokenService, notifier, events, limiters.services.PasswordReset, log)
	profileService := usecase.NewProfileService(repos.Users, log)
	oauthService := usecase.NewOAuthService(identityProvider, repos.Users, sessionService, events, limiters.services.Login, log)

	a.sweeper = NewSweeper(cfg.Session.SweepInterval, metrics, log).
		Add("sessions", sessionService.Sweep).
		Add("tokens", tokenService.Sweep).
		Add("rate_limit", sweepLimiters(limiters.registry))

	deps := routes.Dependencies{
		Config:         cfg,
		Logger:         log,
		APILimiter:     limiters.api,
		Metrics:        httpMetrics,
		TracerProvider: tracerProvider,
		Database:       a.pool,
		Services: routes.ServiceSet{
			Auth:     authService,
			Password: passwordService,
			Profile:  profileService,
			OAuth:    oauthService,
		},
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	return a, nil
}

func runMigrations(dsn string, log *zap.Logger) error {
	migrator, err := database.NewMigrator(dsn, log)
	if err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}
	defer func() {
		_ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.engine
}

// Run serves HTTP until ctx is cancelled or the listener fails, then drains
// in-flight requests and releases every resource.
func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	addr := net.JoinHostPort(a.cfg.App.Host, strconv.Itoa(a.cfg.App.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	a.sweeper.Start(ctx)
	defer a.sweeper.Stop()

	served := make(chan error, 1)
	go func() { served <- server.Serve(ln) }()
	a.logger.Info("http server listening", zap.String("addr", ln.Addr().String()), zap.String("version", Version))

	select {
	case err := <-served:
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("draining http server", zap.Duration("timeout", shutdownTimeout))
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("drain http server: %w", err)
	}
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

// close releases every resource acquired by New. It is safe on a partially built Application.
func (a *Application) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer provider", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
