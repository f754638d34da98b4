package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "AUTHENTICUTE"

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	Session   SessionSettings   `mapstructure:"session"`
	Tokens    TokenSettings     `mapstructure:"tokens"`
	Password  PasswordSettings  `mapstructure:"password"`
	Mail      MailSettings      `mapstructure:"mail"`
	OAuth     OAuthSettings     `mapstructure:"oauth"`
	CORS      CORSSettings      `mapstructure:"cors"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// LogLevel overrides the environment's default level (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`
	// BaseURL is the public frontend origin used to build links in emails.
	BaseURL string `mapstructure:"base_url"`
}

type PostgresSettings struct {
	// URL takes precedence over the discrete connection fields when set.
	URL               string        `mapstructure:"url"`
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	Schema            string        `mapstructure:"schema"`
	AutoMigrate       bool          `mapstructure:"auto_migrate"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// DSN returns the connection URL.
func (p PostgresSettings) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:   "/" + p.Database,
	}
	if p.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(p.SSLMode)
	}
	return u.String()
}

// RedisSettings configures the optional Redis connection.
type RedisSettings struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// KafkaSettings configures the event producer. No brokers means events are only logged.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	ClientID    string   `mapstructure:"client_id"`
}

type TelemetrySettings struct {
	// OTLPEndpoint enables tracing when non-empty.
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// LimitSettings describes one sliding window. MaxRequests of zero disables the limit.
type LimitSettings struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// RateLimitSettings configures the per-operation limiters.
type RateLimitSettings struct {
	// Backend is "memory" (per process) or "redis" (shared across replicas).
	Backend       string        `mapstructure:"backend"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Login         LimitSettings `mapstructure:"login"`
	Signup        LimitSettings `mapstructure:"signup"`
	PasswordReset LimitSettings `mapstructure:"password_reset"`
	API           LimitSettings `mapstructure:"api"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type SessionSettings struct {
	TTL           time.Duration `mapstructure:"ttl"`
	TokenBytes    int           `mapstructure:"token_bytes"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type TokenSettings struct {
	VerificationTTL time.Duration `mapstructure:"verification_ttl"`
	ResetTTL        time.Duration `mapstructure:"reset_ttl"`
	TokenBytes      int           `mapstructure:"token_bytes"`
}

type PasswordSettings struct {
	MinLength           int `mapstructure:"min_length"`
	MaxLength           int `mapstructure:"max_length"`
	MinCharacterClasses int `mapstructure:"min_character_classes"`
	MinStrengthScore    int `mapstructure:"min_strength_score"`
}

// MailSettings configures transactional email. Provider "log" only logs messages.
type MailSettings struct {
	Provider   string        `mapstructure:"provider"`
	APIKey     string        `mapstructure:"api_key"`
	Domain     string        `mapstructure:"domain"`
	From       string        `mapstructure:"from"`
	APIBaseURL string        `mapstructure:"api_base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries uint64        `mapstructure:"max_retries"`
}

type OAuthSettings struct {
	Google   OAuthProviderSettings `mapstructure:"google"`
	StateTTL time.Duration         `mapstructure:"state_ttl"`
}

type OAuthProviderSettings struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// Enabled reports whether the provider has credentials.
func (o OAuthProviderSettings) Enabled() bool {
	return o.ClientID != "" && o.ClientSecret != ""
}

type CORSSettings struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// legacyEnv maps keys to the unprefixed variable names used by earlier deployments.
var legacyEnv = map[string][]string{
	"postgres.url":               {"DATABASE_URL"},
	"app.base_url":               {"BASE_URL"},
	"app.log_level":              {"LOG_LEVEL"},
	"mail.api_key":               {"MAILGUN_API_KEY"},
	"mail.domain":                {"MAILGUN_DOMAIN"},
	"mail.from":                  {"MAILGUN_FROM_EMAIL", "FROM_EMAIL"},
	"oauth.google.client_id":     {"GOOGLE_CLIENT_ID"},
	"oauth.google.client_secret": {"GOOGLE_CLIENT_SECRET"},
	"oauth.google.redirect_url":  {"GOOGLE_REDIRECT_URI"},
}

var configKeys = []string{
	"app.name",
	"app.env",
	"app.host",
	"app.port",
	"app.base_url",
	"app.log_level",
	"postgres.url",
	"postgres.host",
	"postgres.port",
	"postgres.user",
	"postgres.password",
	"postgres.database",
	"postgres.ssl_mode",
	"postgres.schema",
	"postgres.auto_migrate",
	"postgres.max_conns",
	"postgres.min_conns",
	"postgres.max_conn_lifetime",
	"postgres.max_conn_idle_time",
	"postgres.health_check_period",
	"redis.enabled",
	"redis.host",
	"redis.port",
	"redis.db",
	"redis.password",
	"redis.tls_enabled",
	"redis.key_prefix",
	"kafka.brokers",
	"kafka.topic_prefix",
	"kafka.client_id",
	"telemetry.otlp_endpoint",
	"telemetry.service_name",
	"telemetry.sampling_rate",
	"rate_limit.backend",
	"rate_limit.sweep_interval",
	"rate_limit.login.max_requests",
	"rate_limit.login.window",
	"rate_limit.signup.max_requests",
	"rate_limit.signup.window",
	"rate_limit.password_reset.max_requests",
	"rate_limit.password_reset.window",
	"rate_limit.api.max_requests",
	"rate_limit.api.window",
	"argon2.memory",
	"argon2.iterations",
	"argon2.parallelism",
	"argon2.salt_length",
	"argon2.key_length",
	"session.ttl",
	"session.token_bytes",
	"session.sweep_interval",
	"tokens.verification_ttl",
	"tokens.reset_ttl",
	"tokens.token_bytes",
	"password.min_length",
	"password.max_length",
	"password.min_character_classes",
	"password.min_strength_score",
	"mail.provider",
	"mail.api_key",
	"mail.domain",
	"mail.from",
	"mail.api_base_url",
	"mail.timeout",
	"mail.max_retries",
	"oauth.state_ttl",
	"oauth.google.client_id",
	"oauth.google.client_secret",
	"oauth.google.redirect_url",
	"oauth.google.scopes",
	"cors.allowed_origins",
}

// Load reads configuration from defaults and the environment.
func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if err := bindEnvs(v, configKeys); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *AppConfig) Validate() error {
	var errs []error

	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			errs = append(errs, errors.New("rate_limit.backend=redis requires redis.enabled"))
		}
	default:
		errs = append(errs, fmt.Errorf("rate_limit.backend must be memory or redis, got %q", c.RateLimit.Backend))
	}

	for name, limit := range map[string]LimitSettings{
		"login":          c.RateLimit.Login,
		"signup":         c.RateLimit.Signup,
		"password_reset": c.RateLimit.PasswordReset,
		"api":            c.RateLimit.API,
	} {
		if limit.MaxRequests < 0 || (limit.MaxRequests > 0 && limit.Window <= 0) {
			errs = append(errs, fmt.Errorf("rate_limit.%s needs a positive window", name))
		}
	}

	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if c.Session.TokenBytes < 16 || c.Tokens.TokenBytes < 16 {
		errs = append(errs, errors.New("token_bytes must be at least 16"))
	}
	if c.Tokens.VerificationTTL <= 0 || c.Tokens.ResetTTL <= 0 {
		errs = append(errs, errors.New("tokens ttl values must be positive"))
	}

	switch c.Mail.Provider {
	case "log":
	case "mailgun":
		if c.Mail.APIKey == "" || c.Mail.Domain == "" {
			errs = append(errs, errors.New("mail.provider=mailgun requires mail.api_key and mail.domain"))
		}
	default:
		errs = append(errs, fmt.Errorf("mail.provider must be mailgun or log, got %q", c.Mail.Provider))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *AppConfig) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "authenticute")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8000)
	v.SetDefault("app.base_url", "http://localhost:3000")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "authenticute")
	v.SetDefault("postgres.password", "authenticute")
	v.SetDefault("postgres.database", "authenticute")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.schema", "")
	v.SetDefault("postgres.auto_migrate", true)
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "authenticute")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "authenticute")
	v.SetDefault("kafka.client_id", "authenticute")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "authenticute")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.sweep_interval", "5m")
	v.SetDefault("rate_limit.login.max_requests", 5)
	v.SetDefault("rate_limit.login.window", "1m")
	v.SetDefault("rate_limit.signup.max_requests", 3)
	v.SetDefault("rate_limit.signup.window", "5m")
	v.SetDefault("rate_limit.password_reset.max_requests", 3)
	v.SetDefault("rate_limit.password_reset.window", "5m")
	v.SetDefault("rate_limit.api.max_requests", 0)
	v.SetDefault("rate_limit.api.window", "1m")

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.token_bytes", 32)
	v.SetDefault("session.sweep_interval", "10m")

	v.SetDefault("tokens.verification_ttl", "24h")
	v.SetDefault("tokens.reset_ttl", "1h")
	v.SetDefault("tokens.token_bytes", 32)

	v.SetDefault("password.min_length", 8)
	v.SetDefault("password.max_length", 128)
	v.SetDefault("password.min_character_classes", 2)
	v.SetDefault("password.min_strength_score", 2)

	v.SetDefault("mail.provider", "log")
	v.SetDefault("mail.from", "noreply@authenticute.local")
	v.SetDefault("mail.api_base_url", "https://api.mailgun.net")
	v.SetDefault("mail.timeout", "10s")
	v.SetDefault("mail.max_retries", 3)

	v.SetDefault("oauth.state_ttl", "10m")
	v.SetDefault("oauth.google.redirect_url", "http://localhost:8000/api/auth/google/callback")
	v.SetDefault("oauth.google.scopes", []string{
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/userinfo.profile",
	})

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		names := append([]string{envPrefix + "_" + envKey, envKey}, legacyEnv[key]...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
