// Package config assembles the runtime configuration from defaults, an optional
// YAML file, a .env file and WARDEN_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "WARDEN_"

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendLoam   = "loam"
)

// Config is the complete runtime configuration.
type Config struct {
	LogLevel  string `yaml:"log_level" mapstructure:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" mapstructure:"log_format" env:"LOG_FORMAT"`

	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" env:"HTTP_ADDR"`
	Metrics  bool   `yaml:"metrics" mapstructure:"metrics" env:"METRICS"`

	Store StoreConfig `yaml:"store" mapstructure:"store" envPrefix:"STORE_"`

	ConfirmTimeout time.Duration `yaml:"confirm_timeout" mapstructure:"confirm_timeout" env:"CONFIRM_TIMEOUT"`
	NotifyTimeout  time.Duration `yaml:"notify_timeout" mapstructure:"notify_timeout" env:"NOTIFY_TIMEOUT"`
	MuteDuration   time.Duration `yaml:"mute_duration" mapstructure:"mute_duration" env:"MUTE_DURATION"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend" env:"BACKEND"`
	RedisURL    string `yaml:"redis_url" mapstructure:"redis_url" env:"REDIS_URL"`
	RedisPrefix string `yaml:"redis_prefix" mapstructure:"redis_prefix" env:"REDIS_PREFIX"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path" env:"SQLITE_PATH"`
	LoamDir     string `yaml:"loam_dir" mapstructure:"loam_dir" env:"LOAM_DIR"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		HTTPAddr:  ":8080",
		Metrics:   true,
		Store: StoreConfig{
			Backend:     BackendMemory,
			RedisURL:    "redis://localhost:6379/0",
			RedisPrefix: "warden:",
			SQLitePath:  "warden.db",
			LoamDir:     "guilds",
		},
		ConfirmTimeout: 30 * time.Second,
		NotifyTimeout:  60 * time.Second,
		MuteDuration:   domain.DefaultMuteDuration,
	}
}

// Load builds the configuration. path is an optional YAML file; dotenv files
// default to ".env" when it exists. Variables already in the environment win
// over dotenv values.
func Load(path string, dotenv ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if len(dotenv) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			dotenv = []string{".env"}
		}
	}
	if len(dotenv) > 0 {
		if err := godotenv.Load(dotenv...); err != nil {
			return Config{}, fmt.Errorf("failed to load dotenv: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           c,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error

	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("store.redis_url is required for the redis backend"))
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite backend"))
		}
	case BackendLoam:
		if c.Store.LoamDir == "" {
			errs = append(errs, errors.New("store.loam_dir is required for the loam backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}

	if c.ConfirmTimeout <= 0 {
		errs = append(errs, errors.New("confirm_timeout must be positive"))
	}
	if c.NotifyTimeout <= 0 {
		errs = append(errs, errors.New("notify_timeout must be positive"))
	}
	if c.MuteDuration <= 0 || c.MuteDuration > domain.MaxMuteDuration {
		errs = append(errs, fmt.Errorf("mute_duration must be within (0, %s]", domain.MaxMuteDuration))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	return nil
}
