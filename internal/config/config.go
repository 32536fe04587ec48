package config

import (
	"fmt"
	"net/url"

	pkgconfig "github.com/recrutaedu/checkout-sessions/pkg/config"
)

// Config holds all configuration for the checkout sessions service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"CHECKOUT_HTTP_PORT" envDefault:"8080"`

	// Session store backend: redis, postgres or memory.
	StoreBackend string `env:"SESSION_STORE_BACKEND" envDefault:"redis"`

	// Session lifetime and Redis retention window for expired handles.
	SessionTTLMinutes       int `env:"SESSION_TTL_MINUTES" envDefault:"30"`
	SessionRetentionMinutes int `env:"SESSION_RETENTION_MINUTES" envDefault:"60"`

	// Checkout URL assembly. An empty base URL yields relative URLs.
	CheckoutBaseURL string `env:"CHECKOUT_BASE_URL" envDefault:""`
	CheckoutPath    string `env:"CHECKOUT_PATH" envDefault:"/checkout"`

	// Redis
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"recrutaedu"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"recrutaedu_secret"`
	PostgresDB   string `env:"SESSIONS_DB_NAME" envDefault:"checkout_sessions_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load checkout sessions config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.StoreBackend {
	case "redis", "postgres", "memory":
	default:
		return fmt.Errorf("invalid SESSION_STORE_BACKEND %q: must be redis, postgres or memory", c.StoreBackend)
	}
	if c.SessionTTLMinutes < 1 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be positive, got %d", c.SessionTTLMinutes)
	}
	if c.SessionRetentionMinutes < 0 {
		return fmt.Errorf("SESSION_RETENTION_MINUTES must not be negative, got %d", c.SessionRetentionMinutes)
	}
	if c.CheckoutBaseURL != "" {
		if _, err := url.ParseRequestURI(c.CheckoutBaseURL); err != nil {
			return fmt.Errorf("invalid CHECKOUT_BASE_URL %q: %w", c.CheckoutBaseURL, err)
		}
	}
	if c.CheckoutPath == "" || c.CheckoutPath[0] != '/' {
		return fmt.Errorf("CHECKOUT_PATH must start with /, got %q", c.CheckoutPath)
	}
	if c.StoreBackend == "postgres" {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// RedisAddr returns the Redis address in host:port form.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}
