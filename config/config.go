// Package config loads the bot's runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultPrefix        = "@."
	DefaultDriver        = "memory"
	DefaultPort          = "8080"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultDialogTimeout = 30 * time.Second
	DefaultMessageCache  = 5000
)

type Config struct {
	Token         string        `koanf:"bot_token"`
	Prefix        string        `koanf:"bot_prefix"`
	DBDriver      string        `koanf:"db_driver"`
	DatabaseURL   string        `koanf:"database_url"`
	Port          string        `koanf:"port"`
	LogLevel      string        `koanf:"log_level"`
	LogFormat     string        `koanf:"log_format"`
	DialogTimeout time.Duration `koanf:"dialog_timeout"`
	MessageCache  int           `koanf:"message_cache"`
}

// Load reads envFile when it exists, then the process environment, which
// takes precedence. An empty envFile means ".env".
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps BOT_TOKEN to bot_token. Empty variables are skipped so they
// fall back to defaults.
func envKey(name string) string {
	if os.Getenv(name) == "" {
		return ""
	}
	return strings.ToLower(name)
}

func applyDefaults(cfg *Config) {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = DefaultDriver
	}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}
	if cfg.DialogTimeout == 0 {
		cfg.DialogTimeout = DefaultDialogTimeout
	}
	if cfg.MessageCache == 0 {
		cfg.MessageCache = DefaultMessageCache
	}
	cfg.DBDriver = strings.ToLower(cfg.DBDriver)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return errors.New("BOT_TOKEN must be set")
	}
	if strings.TrimSpace(c.Prefix) == "" || strings.ContainsAny(c.Prefix, " \t\n") {
		return fmt.Errorf("invalid BOT_PREFIX %q", c.Prefix)
	}
	switch c.DBDriver {
	case "memory":
	case "sqlite", "sqlite3", "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for DB_DRIVER=%s", c.DBDriver)
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	if c.DialogTimeout < time.Second {
		return fmt.Errorf("DIALOG_TIMEOUT %s is too short", c.DialogTimeout)
	}
	if c.MessageCache < 0 {
		return fmt.Errorf("MESSAGE_CACHE must not be negative, got %d", c.MessageCache)
	}
	return nil
}
