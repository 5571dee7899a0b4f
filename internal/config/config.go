// Package config loads the server configuration.
//
// Values come from, in increasing priority: the defaults in setDefaults, an
// optional config.yaml (searched in ".", "./config" and "/etc/plantcare"),
// and PLANTCARE_-prefixed environment variables where dots become
// underscores, e.g. PLANTCARE_AUTH_TOKEN_SECRET for auth.token_secret.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	_ "time/tzdata" // display.timezone must resolve on hosts without zoneinfo

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "PLANTCARE"

// MinSecretLength is the shortest accepted auth.token_secret.
const MinSecretLength = 16

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
	Display   DisplayConfig   `mapstructure:"display"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	SecureCookies bool          `mapstructure:"secure_cookies"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type StorageConfig struct {
	UploadDir      string `mapstructure:"upload_dir"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// AuthConfig holds the signing secrets and session lifetime.
// SessionSecret keys the flash-message cookie and falls back to TokenSecret.
type AuthConfig struct {
	TokenSecret   string        `mapstructure:"token_secret"`
	SessionSecret string        `mapstructure:"session_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	BcryptCost    int           `mapstructure:"bcrypt_cost"`
}

type ReminderConfig struct {
	Interval             time.Duration `mapstructure:"interval"`
	SessionPruneInterval time.Duration `mapstructure:"session_prune_interval"`
}

type DisplayConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type RateLimitConfig struct {
	LoginPerMinute int `mapstructure:"login_per_minute"`
	LoginBurst     int `mapstructure:"login_burst"`
}

// Load reads configuration from the standard search paths and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadFrom(".", "./config", "/etc/plantcare")
}

// LoadFrom is Load with explicit config.yaml search paths.
func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}

	if cfg.Auth.SessionSecret == "" {
		cfg.Auth.SessionSecret = cfg.Auth.TokenSecret
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults configures default values for all settings. Every key needs a
// default (even an empty one) for AutomaticEnv to see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.secure_cookies", false)

	v.SetDefault("database.path", "data/plantcare.db")

	v.SetDefault("storage.upload_dir", "data/uploads")
	v.SetDefault("storage.max_upload_bytes", 16<<20)

	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_ttl", "168h")
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("reminder.interval", "24h")
	v.SetDefault("reminder.session_prune_interval", "1h")

	v.SetDefault("display.timezone", "Asia/Kolkata")

	v.SetDefault("log.level", "info")

	v.SetDefault("ratelimit.login_per_minute", 10)
	v.SetDefault("ratelimit.login_burst", 5)
}

// Validate reports the first setting the server cannot start with.
func (c *Config) Validate() error {
	switch {
	case len(c.Auth.TokenSecret) < MinSecretLength:
		return fmt.Errorf("config: auth.token_secret must be at least %d characters (set %s_AUTH_TOKEN_SECRET)", MinSecretLength, EnvPrefix)
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	case c.Database.Path == "":
		return errors.New("config: database.path is required")
	case c.Storage.UploadDir == "":
		return errors.New("config: storage.upload_dir is required")
	case c.Storage.MaxUploadBytes <= 0:
		return errors.New("config: storage.max_upload_bytes must be positive")
	case c.Auth.SessionTTL <= 0:
		return errors.New("config: auth.session_ttl must be positive")
	case c.Reminder.Interval <= 0 || c.Reminder.SessionPruneInterval <= 0:
		return errors.New("config: reminder intervals must be positive")
	case c.RateLimit.LoginPerMinute <= 0 || c.RateLimit.LoginBurst <= 0:
		return errors.New("config: ratelimit values must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves display.timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Display.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: display.timezone %q: %w", c.Display.Timezone, err)
	}
	return loc, nil
}

// SlogLevel maps log.level to a slog.Level; unknown names mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
