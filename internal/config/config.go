// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"saas-core/backend/internal/security"
)

var (
	// ErrConfigMissing is returned when a required key is absent.
	ErrConfigMissing = errors.New("config: missing required value")
	// ErrConfigInvalid is returned when a key is present but unusable.
	ErrConfigInvalid = errors.New("config: invalid value")
)

// Session store backends accepted by SESSION_STORE.
const (
	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
	SessionStoreMemory   = "memory"
)

const minSecretLength = 10

// Config holds application configuration loaded from the environment.
type Config struct {
	// Env is the application environment: development, test or production.
	Env string `mapstructure:"APP_ENV"`
	// HTTPAddr is the address the REST API listens on (e.g. :3000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC health server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// SessionStore selects the refresh session backend.
	SessionStore string `mapstructure:"SESSION_STORE"`
	// RedisURL is a redis:// URL. Required for the redis session store; also enables the tenant cache.
	RedisURL       string        `mapstructure:"REDIS_URL"`
	TenantCacheTTL time.Duration `mapstructure:"TENANT_CACHE_TTL"`

	JWTAccessSecret  string `mapstructure:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	JWTIssuer        string `mapstructure:"JWT_ISSUER"`
	// JWTAccessTTL and JWTRefreshTTL use the <n>(ms|s|m|h|d|w|y) grammar.
	JWTAccessTTL  string `mapstructure:"JWT_ACCESS_TTL"`
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`

	// PasswordHasher picks the algorithm for new password hashes.
	PasswordHasher    string `mapstructure:"PASSWORD_HASHER"`
	BcryptCost        int    `mapstructure:"BCRYPT_COST"`
	Argon2MemoryKB    uint32 `mapstructure:"ARGON2_MEMORY_KB"`
	Argon2Time        uint32 `mapstructure:"ARGON2_TIME"`
	Argon2Parallelism uint8  `mapstructure:"ARGON2_PARALLELISM"`

	RefreshCookieName     string `mapstructure:"AUTH_REFRESH_COOKIE_NAME"`
	RefreshCookiePath     string `mapstructure:"AUTH_REFRESH_COOKIE_PATH"`
	RefreshCookieSecure   bool   `mapstructure:"AUTH_COOKIE_SECURE"`
	RefreshCookieSameSite string `mapstructure:"AUTH_COOKIE_SAMESITE"`

	// AppRootDomain is the parent domain of tenant subdomains (e.g. example.com).
	AppRootDomain string `mapstructure:"APP_ROOT_DOMAIN"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`

	// OTLPEndpoint enables OTel export when set.
	OTLPEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// KafkaBrokers is a comma-separated broker list; empty disables auth event streaming.
	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	AuthEventsTopic string `mapstructure:"AUTH_EVENTS_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group of the auth events worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is where the worker pushes auth events (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	accessTTL  time.Duration
	refreshTTL time.Duration
}

var defaults = map[string]any{
	"APP_ENV":                     "development",
	"HTTP_ADDR":                   ":3000",
	"GRPC_ADDR":                   ":8080",
	"DATABASE_URL":                "",
	"SESSION_STORE":               SessionStorePostgres,
	"REDIS_URL":                   "",
	"TENANT_CACHE_TTL":            "5m",
	"JWT_ACCESS_SECRET":           "",
	"JWT_REFRESH_SECRET":          "",
	"JWT_ISSUER":                  "saas-core",
	"JWT_ACCESS_TTL":              "15m",
	"JWT_REFRESH_TTL":             "7d",
	"PASSWORD_HASHER":             security.AlgorithmArgon2id,
	"BCRYPT_COST":                 12,
	"ARGON2_MEMORY_KB":            64 * 1024,
	"ARGON2_TIME":                 3,
	"ARGON2_PARALLELISM":          2,
	"AUTH_REFRESH_COOKIE_NAME":    "rt",
	"AUTH_REFRESH_COOKIE_PATH":    "/api/v1/auth",
	"AUTH_COOKIE_SECURE":          false,
	"AUTH_COOKIE_SAMESITE":        "lax",
	"APP_ROOT_DOMAIN":             "",
	"LOG_LEVEL":                   "info",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"OTEL_EXPORTER_OTLP_INSECURE": false,
	"OTEL_SERVICE_NAME":           "saas-core",
	"KAFKA_BROKERS":               "",
	"AUTH_EVENTS_KAFKA_TOPIC":     "saas-auth-events",
	"KAFKA_GROUP_ID":              "saas-auth-events-worker",
	"LOKI_URL":                    "",
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Every key has a default so that
// AutomaticEnv values are picked up by Unmarshal. JWT secrets are checked by RequireAuth, which
// only the API server calls.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case "development", "test", "production":
	default:
		return fmt.Errorf("%w: APP_ENV must be development, test or production", ErrConfigInvalid)
	}
	if c.HTTPAddr == "" || c.GRPCAddr == "" {
		return fmt.Errorf("%w: HTTP_ADDR and GRPC_ADDR must be set", ErrConfigInvalid)
	}

	var err error
	if c.accessTTL, err = security.ParseTTL(c.JWTAccessTTL); err != nil {
		return fmt.Errorf("%w: JWT_ACCESS_TTL: %v", ErrConfigInvalid, err)
	}
	if c.refreshTTL, err = security.ParseTTL(c.JWTRefreshTTL); err != nil {
		return fmt.Errorf("%w: JWT_REFRESH_TTL: %v", ErrConfigInvalid, err)
	}

	switch c.SessionStore {
	case SessionStorePostgres, SessionStoreMemory:
	case SessionStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: REDIS_URL is required when SESSION_STORE=redis", ErrConfigMissing)
		}
	default:
		return fmt.Errorf("%w: SESSION_STORE must be postgres, redis or memory", ErrConfigInvalid)
	}
	if c.SessionStore == SessionStoreMemory && c.Env == "production" {
		return fmt.Errorf("%w: SESSION_STORE=memory is not allowed when APP_ENV=production", ErrConfigInvalid)
	}

	switch c.PasswordHasher {
	case security.AlgorithmArgon2id, security.AlgorithmBcrypt:
	default:
		return fmt.Errorf("%w: PASSWORD_HASHER must be argon2id or bcrypt", ErrConfigInvalid)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("%w: BCRYPT_COST must be between 4 and 31", ErrConfigInvalid)
	}
	if c.Argon2MemoryKB == 0 || c.Argon2Time == 0 || c.Argon2Parallelism == 0 {
		return fmt.Errorf("%w: ARGON2_* parameters must be positive", ErrConfigInvalid)
	}

	switch strings.ToLower(c.RefreshCookieSameSite) {
	case "lax", "strict", "none":
	default:
		return fmt.Errorf("%w: AUTH_COOKIE_SAMESITE must be lax, strict or none", ErrConfigInvalid)
	}
	if c.RefreshCookieName == "" {
		return fmt.Errorf("%w: AUTH_REFRESH_COOKIE_NAME must be set", ErrConfigInvalid)
	}
	if c.TenantCacheTTL <= 0 {
		return fmt.Errorf("%w: TENANT_CACHE_TTL must be positive", ErrConfigInvalid)
	}
	return nil
}

// RequireAuth checks the token signing secrets. Both are required, at least
// ten characters long, and must differ from each other.
func (c *Config) RequireAuth() error {
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("%w: JWT_ACCESS_SECRET", ErrConfigMissing)
	}
	if c.JWTRefreshSecret == "" {
		return fmt.Errorf("%w: JWT_REFRESH_SECRET", ErrConfigMissing)
	}
	if len(c.JWTAccessSecret) < minSecretLength || len(c.JWTRefreshSecret) < minSecretLength {
		return fmt.Errorf("%w: JWT secrets must be at least %d characters", ErrConfigInvalid, minSecretLength)
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return fmt.Errorf("%w: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ", ErrConfigInvalid)
	}
	return nil
}

// AccessTTL is the parsed JWT_ACCESS_TTL.
func (c *Config) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL is the parsed JWT_REFRESH_TTL.
func (c *Config) RefreshTTL() time.Duration { return c.refreshTTL }

// TokenConfig returns the token codec settings.
func (c *Config) TokenConfig() security.TokenConfig {
	return security.TokenConfig{
		AccessSecret:  c.JWTAccessSecret,
		RefreshSecret: c.JWTRefreshSecret,
		Issuer:        c.JWTIssuer,
		AccessTTL:     c.accessTTL,
		RefreshTTL:    c.refreshTTL,
	}
}

// Argon2Params returns the argon2id cost parameters for new hashes.
func (c *Config) Argon2Params() security.Argon2Params {
	return security.Argon2Params{MemoryKB: c.Argon2MemoryKB, Time: c.Argon2Time, Parallelism: c.Argon2Parallelism}
}

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if auth event streaming is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
