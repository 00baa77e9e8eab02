package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Backend modes.
const (
	BackendHosted = "hosted"
	BackendLocal  = "local"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	SiteURL   string `env:"SITE_URL,  default=http://localhost:8080"`
	JWTSecret string `env:"JWT_SECRET"`

	Backend BackendConfig
	Auth    AuthConfig
	Mongo   MongoConfig
	Redis   RedisConfig
}

// BackendConfig selects and configures the identity service.
type BackendConfig struct {
	Mode    string        `env:"AUTH_BACKEND,    default=hosted"`
	URL     string        `env:"BACKEND_URL"`
	APIKey  string        `env:"BACKEND_API_KEY"`
	Timeout time.Duration `env:"BACKEND_TIMEOUT, default=10s"`

	// Local emulator only.
	RequireEmailConfirmation bool          `env:"REQUIRE_EMAIL_CONFIRMATION, default=false"`
	OAuthProviders           []string      `env:"OAUTH_PROVIDERS,            default=google"`
	SessionTTL               time.Duration `env:"SESSION_TTL,                default=1h"`
}

// AuthConfig tunes the auth surface.
type AuthConfig struct {
	RateLimit      float64 `env:"AUTH_RATE_LIMIT,  default=5"`
	ProfileWorkers int     `env:"PROFILE_WORKERS,  default=4"`
	MaxAvatarBytes int64   `env:"MAX_AVATAR_BYTES, default=2097152"`
	NotifyCapacity int     `env:"NOTIFY_CAPACITY,  default=50"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=sociallab"`
}

type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR,       default=localhost:6379"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB,         default=0"`
	PoolSize  int    `env:"REDIS_POOL_SIZE,  default=10"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX, default=localstore:"`
}

// IsDevelopment reports whether the process runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	switch c.Backend.Mode {
	case BackendHosted:
		if c.Backend.URL == "" || c.Backend.APIKey == "" {
			return fmt.Errorf("config: BACKEND_URL and BACKEND_API_KEY are required for the hosted backend")
		}
	case BackendLocal:
		if c.JWTSecret == "" {
			return fmt.Errorf("config: JWT_SECRET is required for the local backend")
		}
	default:
		return fmt.Errorf("config: unknown AUTH_BACKEND %q", c.Backend.Mode)
	}
	return nil
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(err.Error())
	}
	return &cfg
}
