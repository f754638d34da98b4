package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/komiwalnut/AuthentiCute/internal/core/port"
	"github.com/komiwalnut/AuthentiCute/internal/infra/config"
	"github.com/komiwalnut/AuthentiCute/internal/transport/http/handlers"
	"github.com/komiwalnut/AuthentiCute/internal/transport/http/middleware"
)

// AuthService is the account surface plus session validation for RequireAuth.
type AuthService interface {
	handlers.AuthUseCase
	middleware.Authenticator
}

// ServiceSet holds the use cases behind the handlers. Nil members leave their routes unregistered.
type ServiceSet struct {
	Auth     AuthService
	Password handlers.PasswordUseCase
	Profile  handlers.ProfileUseCase
	OAuth    handlers.OAuthUseCase
}

// Dependencies is everything Register wires into the engine.
type Dependencies struct {
	Config *config.AppConfig
	Logger *zap.Logger
	// APILimiter throttles every /api request per client IP when set.
	APILimiter     port.RateLimiter
	Services       ServiceSet
	Metrics        *middleware.HTTPMetrics
	MetricsHandler http.Handler
	TracerProvider trace.TracerProvider
	Database       DatabaseChecker
	Cache          CacheChecker
}

// DatabaseChecker is pinged by /readyz.
type DatabaseChecker interface {
	Ping(context.Context) error
}

// CacheChecker is probed by /readyz.
type CacheChecker interface {
	HealthCheck(context.Context) error
}

// Register builds the engine: global middleware, probes, then the /api tree.
func Register(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if deps.TracerProvider != nil {
		r.Use(middleware.Tracing(middleware.WithTracerProvider(deps.TracerProvider)))
	}
	r.Use(middleware.RequestID())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	healthOptions := []handlers.HealthOption{handlers.WithHealthLogger(logger)}
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))

	api := r.Group("/api")
	api.Use(middleware.Throttle("api_ip", deps.APILimiter, middleware.ByClientIP, logger))
	{
		api.GET("/health", healthHandler.Status)
		api.GET("/db-health", healthHandler.Readiness)

		authGroup := api.Group("/auth")
		if deps.Services.Auth != nil {
			requireAuth := middleware.RequireAuth(deps.Services.Auth)

			authHandler := handlers.NewAuthHandler(deps.Services.Auth)
			authHandler.RegisterRoutes(authGroup, requireAuth)

			if deps.Services.Profile != nil {
				userGroup := api.Group("/users")
				userGroup.Use(requireAuth)
				handlers.NewUserHandler(deps.Services.Profile).RegisterRoutes(userGroup)
			}
		}

		if deps.Services.Password != nil {
			handlers.NewPasswordHandler(deps.Services.Password).RegisterRoutes(authGroup)
		}

		if deps.Services.OAuth != nil {
			oauthHandler := handlers.NewOAuthHandler(deps.Services.OAuth,
				handlers.WithStateTTL(cfg.OAuth.StateTTL),
				handlers.WithSecureCookie(cfg.App.Env == "production"),
			)
			oauthHandler.RegisterRoutes(authGroup)
		}
	}

	return r
}
