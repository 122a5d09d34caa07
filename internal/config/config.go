// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package config loads Gatekeep's configuration. Sources are layered:
// built-in defaults, then an optional YAML file, then secret environment
// variables, then command-line flags.
package config

import (
	"log/slog"
	"net/url"
	"os"
	"slices"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// Session backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Mail drivers.
const (
	MailDriverSMTP = "smtp"
	MailDriverLog  = "log"
)

// MinSecretLength is the minimum size of a token signing secret in bytes.
const MinSecretLength = 32

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Auth     AuthConfig     `koanf:"auth"`
	Tokens   TokenConfig    `koanf:"tokens"`
	Database DatabaseConfig `koanf:"database"`
	Sessions SessionConfig  `koanf:"sessions"`
	Mail     MailConfig     `koanf:"mail"`
}

// ServerConfig holds listen addresses. An empty MetricsAddr disables the
// observability server.
type ServerConfig struct {
	Listen          string        `koanf:"listen"`
	MetricsAddr     string        `koanf:"metrics_addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LogConfig selects the log format and minimum level.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// AuthConfig mirrors auth.Config.
type AuthConfig struct {
	Origin              string        `koanf:"origin"`
	SessionTTL          time.Duration `koanf:"session_ttl"`
	VerificationCodeTTL time.Duration `koanf:"verification_code_ttl"`
	ResetCodeTTL        time.Duration `koanf:"reset_code_ttl"`
	RenewalThreshold    time.Duration `koanf:"renewal_threshold"`
	ResetThrottleWindow time.Duration `koanf:"reset_throttle_window"`
	ResetThrottleLimit  int           `koanf:"reset_throttle_limit"`
}

// TokenConfig configures JWT signing.
type TokenConfig struct {
	AccessSecret  string        `koanf:"access_secret"`
	RefreshSecret string        `koanf:"refresh_secret"`
	Issuer        string        `koanf:"issuer"`
	AccessTTL     time.Duration `koanf:"access_ttl"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string `koanf:"url"`
	MaxConns        int32  `koanf:"max_conns"`
	ConnectAttempts uint64 `koanf:"connect_attempts"`
}

// SessionConfig selects where sessions live.
type SessionConfig struct {
	Backend string      `koanf:"backend"`
	Redis   RedisConfig `koanf:"redis"`
}

// RedisConfig configures the Redis session backend.
type RedisConfig struct {
	Addr      string        `koanf:"addr"`
	Password  string        `koanf:"password"`
	DB        int           `koanf:"db"`
	Prefix    string        `koanf:"prefix"`
	Retention time.Duration `koanf:"retention"`
}

// MailConfig selects and configures the mailer.
type MailConfig struct {
	Driver string     `koanf:"driver"`
	SMTP   SMTPConfig `koanf:"smtp"`
}

// SMTPConfig configures SMTP delivery.
type SMTPConfig struct {
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	From     string        `koanf:"from"`
	Attempts uint64        `koanf:"attempts"`
	Backoff  time.Duration `koanf:"backoff"`
}

// Default returns the built-in configuration. It is not valid on its own:
// token secrets must be supplied.
func Default() Config {
	core := auth.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Listen:          "127.0.0.1:8080",
			MetricsAddr:     "127.0.0.1:9100",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Format: "json", Level: "info"},
		Auth: AuthConfig{
			Origin:              core.Origin,
			SessionTTL:          core.SessionTTL,
			VerificationCodeTTL: core.VerificationCodeTTL,
			ResetCodeTTL:        core.ResetCodeTTL,
			RenewalThreshold:    core.RenewalThreshold,
			ResetThrottleWindow: core.ResetThrottleWindow,
			ResetThrottleLimit:  core.ResetThrottleLimit,
		},
		Tokens: TokenConfig{
			Issuer:     "gatekeep",
			AccessTTL:  auth.DefaultAccessTokenTTL,
			RefreshTTL: auth.DefaultRefreshTokenTTL,
		},
		Database: DatabaseConfig{MaxConns: 10, ConnectAttempts: 5},
		Sessions: SessionConfig{
			Backend: BackendPostgres,
			Redis:   RedisConfig{Addr: "127.0.0.1:6379", Prefix: "gatekeep", Retention: 24 * time.Hour},
		},
		Mail: MailConfig{
			Driver: MailDriverLog,
			SMTP:   SMTPConfig{Port: 587, Attempts: 3, Backoff: 500 * time.Millisecond},
		},
	}
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"listen":          "server.listen",
	"metrics-addr":    "server.metrics_addr",
	"log-format":      "log.format",
	"log-level":       "log.level",
	"origin":          "auth.origin",
	"database-url":    "database.url",
	"session-backend": "sessions.backend",
	"redis-addr":      "sessions.redis.addr",
	"mail-driver":     "mail.driver",
}

// envKeys maps environment variables to configuration keys. Only secrets
// and connection strings are read from the environment.
var envKeys = map[string]string{
	"DATABASE_URL":            "database.url",
	"GATEKEEP_ACCESS_SECRET":  "tokens.access_secret",
	"GATEKEEP_REFRESH_SECRET": "tokens.refresh_secret",
	"GATEKEEP_REDIS_PASSWORD": "sessions.redis.password",
	"GATEKEEP_SMTP_PASSWORD":  "mail.smtp.password",
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("listen", d.Server.Listen, "HTTP API listen address")
	fs.String("metrics-addr", d.Server.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "minimum log level (debug, info, warn, error)")
	fs.String("origin", d.Auth.Origin, "base URL for links in emails")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("session-backend", d.Sessions.Backend, "session store (postgres, redis, memory)")
	fs.String("redis-addr", d.Sessions.Redis.Addr, "Redis address for the redis session backend")
	fs.String("mail-driver", d.Mail.Driver, "mailer (smtp or log)")
}

// Load builds a Config from the layered sources. path may be empty; fs may
// be nil. The result is not validated.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	for env, key := range envKeys {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, oops.Code("CONFIG_LOAD_FAILED").With("env", env).Wrap(err)
			}
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}
	return &cfg, nil
}

// AuthCore converts the auth section to auth.Config.
func (c *Config) AuthCore() auth.Config {
	return auth.Config{
		Origin:              c.Auth.Origin,
		SessionTTL:          c.Auth.SessionTTL,
		VerificationCodeTTL: c.Auth.VerificationCodeTTL,
		ResetCodeTTL:        c.Auth.ResetCodeTTL,
		RenewalThreshold:    c.Auth.RenewalThreshold,
		ResetThrottleWindow: c.Auth.ResetThrottleWindow,
		ResetThrottleLimit:  c.Auth.ResetThrottleLimit,
	}
}

// SignerConfig converts the tokens section to auth.JWTSignerConfig.
func (c *Config) SignerConfig() auth.JWTSignerConfig {
	return auth.JWTSignerConfig{
		AccessSecret:  []byte(c.Tokens.AccessSecret),
		RefreshSecret: []byte(c.Tokens.RefreshSecret),
		AccessTTL:     c.Tokens.AccessTTL,
		RefreshTTL:    c.Tokens.RefreshTTL,
		Issuer:        c.Tokens.Issuer,
	}
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, oops.Code("CONFIG_INVALID").With("field", "log.level").Wrap(err)
	}
	return level, nil
}

// NeedsDatabase reports whether the selected backends use PostgreSQL.
// Users and codes always do unless everything is in memory.
func (c *Config) NeedsDatabase() bool {
	return c.Sessions.Backend != BackendMemory
}

// Validate checks the configuration for the serve command.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return invalid("server.listen", "listen address is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return invalid("server.shutdown_timeout", "shutdown timeout must be positive")
	}
	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		return invalid("log.format", "log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if err := c.AuthCore().Validate(); err != nil {
		return err
	}

	if len(c.Tokens.AccessSecret) < MinSecretLength || len(c.Tokens.RefreshSecret) < MinSecretLength {
		return invalid("tokens", "token secrets must be at least %d bytes", MinSecretLength)
	}
	if c.Tokens.AccessSecret == c.Tokens.RefreshSecret {
		return invalid("tokens", "access and refresh secrets must differ")
	}
	// A refresh token must outlive the wait until its session can be renewed.
	refreshTTL := c.Tokens.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = auth.DefaultRefreshTokenTTL
	}
	if renewable := c.Auth.SessionTTL - c.Auth.RenewalThreshold; refreshTTL < renewable {
		return invalid("tokens.refresh_ttl", "refresh ttl %s is shorter than session_ttl - renewal_threshold (%s)",
			refreshTTL, renewable)
	}

	if err := c.ValidateStorage(); err != nil {
		return err
	}

	switch c.Mail.Driver {
	case MailDriverLog:
	case MailDriverSMTP:
		if c.Mail.SMTP.Host == "" || c.Mail.SMTP.From == "" {
			return invalid("mail.smtp", "smtp host and from are required for the smtp driver")
		}
	default:
		return invalid("mail.driver", "unknown mail driver %q", c.Mail.Driver)
	}
	return nil
}

// ValidateStorage checks only the backend settings. Commands that touch
// storage without serving, such as prune, call it instead of Validate.
func (c *Config) ValidateStorage() error {
	switch c.Sessions.Backend {
	case BackendPostgres, BackendMemory:
	case BackendRedis:
		if c.Sessions.Redis.Addr == "" {
			return invalid("sessions.redis.addr", "redis address is required for the redis backend")
		}
	default:
		return invalid("sessions.backend", "unknown session backend %q", c.Sessions.Backend)
	}
	if c.NeedsDatabase() && c.Database.URL == "" {
		return invalid("database.url", "database url is required for the %s backend", c.Sessions.Backend)
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	r := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "REDACTED"
	}
	r.Tokens.AccessSecret = mask(r.Tokens.AccessSecret)
	r.Tokens.RefreshSecret = mask(r.Tokens.RefreshSecret)
	r.Sessions.Redis.Password = mask(r.Sessions.Redis.Password)
	r.Mail.SMTP.Password = mask(r.Mail.SMTP.Password)
	if u, err := url.Parse(r.Database.URL); err == nil && u.User != nil {
		r.Database.URL = u.Redacted()
	}
	return r
}
