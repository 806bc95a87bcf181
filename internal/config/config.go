// Package config provides application configuration management.
// Values come from CARDBOT_* environment variables, optionally seeded from a
// .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/garyellow/cardbot/internal/cardstore"
	domerrors "github.com/garyellow/cardbot/internal/errors"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "CARDBOT_"

// Config holds all application configuration
type Config struct {
	// Server Configuration
	Port            string        `env:"PORT" envDefault:"10000"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Turn handling
	TurnTimeout       time.Duration `env:"TURN_TIMEOUT" envDefault:"15s"`
	TextPreviewLength int           `env:"TEXT_PREVIEW_LENGTH" envDefault:"200"`
	MaxBodyBytes      int64         `env:"MAX_BODY_BYTES" envDefault:"262144"`

	RateLimit   RateLimitConfig   `envPrefix:"RATE_LIMIT_"`
	Store       StoreConfig       `envPrefix:"STORE_"`
	Audit       AuditConfig       `envPrefix:"AUDIT_"`
	Metrics     MetricsConfig     `envPrefix:"METRICS_"`
	Sentry      SentryConfig      `envPrefix:"SENTRY_"`
	BetterStack BetterStackConfig `envPrefix:"BETTERSTACK_"`
}

// RateLimitConfig is the per-conversation token bucket.
type RateLimitConfig struct {
	Burst        int           `env:"BURST" envDefault:"10"`
	RefillPerSec float64       `env:"REFILL_PER_SEC" envDefault:"1"`
	Cleanup      time.Duration `env:"CLEANUP" envDefault:"5m"`
}

// StoreConfig selects the card content store.
type StoreConfig struct {
	Backend    string `env:"BACKEND" envDefault:"embedded"`
	Dir        string `env:"DIR"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"data/cards.db"`

	R2Endpoint    string `env:"R2_ENDPOINT"`
	R2AccessKeyID string `env:"R2_ACCESS_KEY_ID"`
	R2SecretKey   string `env:"R2_SECRET_ACCESS_KEY"`
	R2Bucket      string `env:"R2_BUCKET"`
	R2Prefix      string `env:"R2_PREFIX" envDefault:"cards/"`
	R2Compress    bool   `env:"R2_COMPRESS"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"cardbot:card:"`
}

// AuditConfig controls catalog audits. An empty schedule disables
// periodic audits; the startup audit always runs.
type AuditConfig struct {
	Schedule         string        `env:"SCHEDULE" envDefault:"@every 15m"`
	Timeout          time.Duration `env:"TIMEOUT" envDefault:"30s"`
	ReadinessTimeout time.Duration `env:"READINESS_TIMEOUT" envDefault:"2m"`
}

// MetricsConfig protects /metrics with Basic Auth when Password is set.
type MetricsConfig struct {
	Username string `env:"USERNAME" envDefault:"prometheus"`
	Password string `env:"PASSWORD"`
}

// SentryConfig configures Better Stack error tracking via the Sentry SDK.
type SentryConfig struct {
	Token       string  `env:"TOKEN"`
	Host        string  `env:"HOST"`
	Environment string  `env:"ENVIRONMENT" envDefault:"production"`
	Release     string  `env:"RELEASE"`
	SampleRate  float64 `env:"SAMPLE_RATE" envDefault:"1"`
}

// BetterStackConfig configures remote log shipping.
type BetterStackConfig struct {
	Token    string `env:"TOKEN"`
	Endpoint string `env:"ENDPOINT"`
}

// Load reads configuration from the environment.
// It attempts to load .env file first, then reads from env vars.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	return load(nil)
}

// load parses environ (or the process environment when nil) and validates.
func load(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{Prefix: EnvPrefix, Environment: environ}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, msg string) {
		errs = append(errs, domerrors.NewConfigError(EnvPrefix+field, msg))
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		add("PORT", fmt.Sprintf("must be a TCP port, got %q", c.Port))
	}
	if c.ShutdownTimeout <= 0 {
		add("SHUTDOWN_TIMEOUT", "must be positive")
	}
	if c.TurnTimeout <= 0 {
		add("TURN_TIMEOUT", "must be positive")
	}
	if c.TextPreviewLength <= 0 {
		add("TEXT_PREVIEW_LENGTH", "must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		add("MAX_BODY_BYTES", "must be positive")
	}

	if c.RateLimit.Burst < 1 {
		add("RATE_LIMIT_BURST", "must be at least 1")
	}
	if c.RateLimit.RefillPerSec <= 0 {
		add("RATE_LIMIT_REFILL_PER_SEC", "must be positive")
	}
	if c.RateLimit.Cleanup <= 0 {
		add("RATE_LIMIT_CLEANUP", "must be positive")
	}

	for _, e := range c.Store.validate() {
		add(e[0], e[1])
	}

	if c.Audit.Schedule != "" {
		if _, err := cron.ParseStandard(c.Audit.Schedule); err != nil {
			add("AUDIT_SCHEDULE", err.Error())
		}
	}
	if c.Audit.Timeout <= 0 {
		add("AUDIT_TIMEOUT", "must be positive")
	}
	if c.Audit.ReadinessTimeout <= 0 {
		add("AUDIT_READINESS_TIMEOUT", "must be positive")
	}

	if c.Sentry.Token != "" && c.Sentry.Host == "" {
		add("SENTRY_HOST", "is required when SENTRY_TOKEN is set")
	}
	if c.Sentry.SampleRate < 0 || c.Sentry.SampleRate > 1 {
		add("SENTRY_SAMPLE_RATE", "must be between 0 and 1")
	}

	return errors.Join(errs...)
}

func (s StoreConfig) validate() [][2]string {
	var errs [][2]string
	switch s.Backend {
	case cardstore.BackendEmbedded:
	case cardstore.BackendDir:
		if s.Dir == "" {
			errs = append(errs, [2]string{"STORE_DIR", "is required for the dir backend"})
		}
	case cardstore.BackendSQLite:
		if s.SQLitePath == "" {
			errs = append(errs, [2]string{"STORE_SQLITE_PATH", "is required for the sqlite backend"})
		}
	case cardstore.BackendR2:
		for _, f := range [][2]string{
			{"STORE_R2_ENDPOINT", s.R2Endpoint},
			{"STORE_R2_ACCESS_KEY_ID", s.R2AccessKeyID},
			{"STORE_R2_SECRET_ACCESS_KEY", s.R2SecretKey},
			{"STORE_R2_BUCKET", s.R2Bucket},
		} {
			if f[1] == "" {
				errs = append(errs, [2]string{f[0], "is required for the r2 backend"})
			}
		}
	case cardstore.BackendRedis:
		if s.RedisAddr == "" {
			errs = append(errs, [2]string{"STORE_REDIS_ADDR", "is required for the redis backend"})
		}
	default:
		errs = append(errs, [2]string{"STORE_BACKEND", fmt.Sprintf("unknown backend %q", s.Backend)})
	}
	return errs
}

// CardStore converts the settings into a cardstore.Config.
func (s StoreConfig) CardStore() cardstore.Config {
	return cardstore.Config{
		Backend:    s.Backend,
		Dir:        s.Dir,
		SQLitePath: s.SQLitePath,
		R2: cardstore.R2Config{
			Endpoint:    s.R2Endpoint,
			AccessKeyID: s.R2AccessKeyID,
			SecretKey:   s.R2SecretKey,
			Bucket:      s.R2Bucket,
			Prefix:      s.R2Prefix,
			Compress:    s.R2Compress,
		},
		Redis: cardstore.RedisConfig{
			Addr:     s.RedisAddr,
			Password: s.RedisPassword,
			DB:       s.RedisDB,
			Prefix:   s.RedisPrefix,
		},
	}
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}
