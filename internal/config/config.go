// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package config loads and validates the authgate configuration.
package config

import (
	"net/url"
	"slices"
	"time"

	"github.com/samber/oops"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage and mail drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	MailerSMTP     = "smtp"
	MailerLog      = "log"
)

// MinTokenSecretLength is the shortest accepted HS256 signing secret.
const MinTokenSecretLength = 32

// Config is the full service configuration. It is built once at startup
// and passed down by value.
type Config struct {
	Env       string          `koanf:"env" jsonschema:"enum=development,enum=production,description=Deployment environment"`
	HTTP      HTTPConfig      `koanf:"http"`
	Token     TokenConfig     `koanf:"token"`
	Challenge ChallengeConfig `koanf:"challenge"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Mail      MailConfig      `koanf:"mail"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr" jsonschema:"description=Listen address of the API"`
	ClientURL       string        `koanf:"client_url" jsonschema:"description=Browser client origin; base of reset links"`
	BodyLimit       int           `koanf:"body_limit" jsonschema:"minimum=1,description=Maximum request body size in bytes"`
	CookieName      string        `koanf:"cookie_name"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// TokenConfig configures session tokens.
type TokenConfig struct {
	Secret   string        `koanf:"secret" jsonschema:"description=HS256 signing secret (at least 32 characters)"`
	Lifetime time.Duration `koanf:"lifetime"`
}

// ChallengeConfig configures OTP and reset token lifetimes.
type ChallengeConfig struct {
	OTPTTL   time.Duration `koanf:"otp_ttl"`
	ResetTTL time.Duration `koanf:"reset_ttl"`
}

// DatabaseConfig configures account storage.
type DatabaseConfig struct {
	Driver         string        `koanf:"driver" jsonschema:"enum=postgres,enum=memory"`
	URL            string        `koanf:"url"`
	MaxConns       int32         `koanf:"max_conns" jsonschema:"minimum=1"`
	ConnectRetries uint64        `koanf:"connect_retries"`
	RetryBackoff   time.Duration `koanf:"retry_backoff"`
	AutoMigrate    bool          `koanf:"auto_migrate"`
}

// RedisConfig configures the rate limiter backend. An empty Addr disables
// rate limiting.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" jsonschema:"minimum=0"`
}

// RateLimitConfig configures the per-client request window.
type RateLimitConfig struct {
	Limit  int           `koanf:"limit" jsonschema:"minimum=1"`
	Window time.Duration `koanf:"window"`
}

// MailConfig selects and configures the mail transport.
type MailConfig struct {
	Driver string     `koanf:"driver" jsonschema:"enum=smtp,enum=log"`
	SMTP   SMTPConfig `koanf:"smtp"`
}

// SMTPConfig configures the SMTP relay.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port" jsonschema:"minimum=1,maximum=65535"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `koanf:"format" jsonschema:"enum=json,enum=text"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Env: EnvDevelopment,
		HTTP: HTTPConfig{
			Addr:            ":5000",
			ClientURL:       "http://localhost:3000",
			BodyLimit:       10 * 1024,
			CookieName:      "aulg",
			ShutdownTimeout: 10 * time.Second,
		},
		Token: TokenConfig{
			Lifetime: 48 * time.Hour,
		},
		Challenge: ChallengeConfig{
			OTPTTL:   10 * time.Minute,
			ResetTTL: 10 * time.Minute,
		},
		Database: DatabaseConfig{
			Driver:         DriverPostgres,
			MaxConns:       10,
			ConnectRetries: 5,
			RetryBackoff:   500 * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			Limit:  100,
			Window: 15 * time.Minute,
		},
		Mail: MailConfig{
			Driver: MailerLog,
			SMTP: SMTPConfig{
				Host: "smtp.gmail.com",
				Port: 587,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
	}
}

// Production reports whether the service runs in production mode.
func (c Config) Production() bool { return c.Env == EnvProduction }

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var problems []string
	add := func(p string) { problems = append(problems, p) }

	if !slices.Contains([]string{EnvDevelopment, EnvProduction}, c.Env) {
		add("env must be development or production")
	}
	if c.HTTP.Addr == "" {
		add("http.addr is required")
	}
	if u, err := url.ParseRequestURI(c.HTTP.ClientURL); err != nil || u.Host == "" {
		add("http.client_url must be an absolute URL")
	}
	if c.HTTP.BodyLimit <= 0 {
		add("http.body_limit must be positive")
	}
	if c.HTTP.CookieName == "" {
		add("http.cookie_name is required")
	}
	if len(c.Token.Secret) < MinTokenSecretLength {
		add("token.secret must be at least 32 characters")
	}
	if c.Token.Lifetime <= 0 {
		add("token.lifetime must be positive")
	}
	if c.Challenge.OTPTTL <= 0 || c.Challenge.ResetTTL <= 0 {
		add("challenge lifetimes must be positive")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			add("database.url is required for the postgres driver")
		}
	case DriverMemory:
		if c.Production() {
			add("the memory database driver is not allowed in production")
		}
	default:
		add("database.driver must be postgres or memory")
	}

	if c.Redis.Addr != "" && (c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0) {
		add("rate_limit.limit and rate_limit.window must be positive")
	}

	switch c.Mail.Driver {
	case MailerSMTP:
		if c.Mail.SMTP.Host == "" || c.Mail.SMTP.Port <= 0 {
			add("mail.smtp.host and mail.smtp.port are required for the smtp driver")
		}
		if c.Mail.SMTP.From == "" && c.Mail.SMTP.Username == "" {
			add("mail.smtp.from or mail.smtp.username is required for the smtp driver")
		}
	case MailerLog:
		if c.Production() {
			add("the log mail driver is not allowed in production")
		}
	default:
		add("mail.driver must be smtp or log")
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		add("log.level must be debug, info, warn or error")
	}
	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		add("log.format must be json or text")
	}

	if len(problems) > 0 {
		return oops.Code("CONFIG_INVALID").With("problems", problems).Errorf("invalid configuration: %d problem(s): %v", len(problems), problems)
	}
	return nil
}
