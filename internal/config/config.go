package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/gmsas95/medremind/internal/errors"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "MEDREMIND"
	configFileName = "medremind.yaml"
	dbFileName     = "medremind.db"
)

// Config holds all configuration
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Slots     SlotsConfig     `mapstructure:"slots"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	API       APIConfig       `mapstructure:"api"`
	Log       LogConfig       `mapstructure:"log"`
}

// SchedulerConfig holds poll and alarm timing
type SchedulerConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	Tolerance     time.Duration `mapstructure:"tolerance"`
	GracePeriod   time.Duration `mapstructure:"grace_period"`
	DefaultSnooze time.Duration `mapstructure:"default_snooze"`
	QueueSize     int           `mapstructure:"queue_size"`
	Timezone      string        `mapstructure:"timezone"`
}

// Location resolves Timezone, defaulting to the local zone
func (s SchedulerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || strings.EqualFold(s.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// SlotsConfig maps the named times of day to "HH:MM"
type SlotsConfig struct {
	Morning string `mapstructure:"morning"`
	Noon    string `mapstructure:"noon"`
	Evening string `mapstructure:"evening"`
	Night   string `mapstructure:"night"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// NotifyConfig selects the alarm presenters
type NotifyConfig struct {
	Console  bool           `mapstructure:"console"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds Telegram bot settings
type TelegramConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	BotToken      string  `mapstructure:"bot_token"`
	ChatID        int64   `mapstructure:"chat_id"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
}

// APIConfig holds HTTP server settings
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

// Addr returns host:port
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Address, a.Port)
}

// LogConfig holds logger settings
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Determine data directory
	if dataDir == "" {
		dataDir = ResolveEnvWithAliases(envPrefix + "_STORAGE_DATA_DIR")
	}
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	v.SetDefault("storage.data_dir", dataDir)
	v.SetDefault("storage.sqlite_path", "")

	// Config file path
	if configPath == "" {
		configPath = filepath.Join(dataDir, configFileName)
	}

	// If config file exists, load it
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrConfigInvalid.Code, "failed to read config")
		}
	}

	// Environment variables (MEDREMIND_SCHEDULER_TOLERANCE, MEDREMIND_API_PORT, ...)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrConfigInvalid.Code, "failed to unmarshal config")
	}

	loadEnvOverrides(&cfg)

	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(cfg.Storage.DataDir, dbFileName)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration for dataDir
func Default(dataDir string) *Config {
	v := viper.New()
	setDefaults(v)
	v.SetDefault("storage.data_dir", dataDir)
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, dbFileName))

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	// Scheduler defaults
	v.SetDefault("scheduler.poll_interval", "30s")
	v.SetDefault("scheduler.tolerance", "2m")
	v.SetDefault("scheduler.grace_period", "10m")
	v.SetDefault("scheduler.default_snooze", "5m")
	v.SetDefault("scheduler.queue_size", 16)
	v.SetDefault("scheduler.timezone", "Local")

	// Slot defaults
	v.SetDefault("slots.morning", "08:00")
	v.SetDefault("slots.noon", "12:00")
	v.SetDefault("slots.evening", "18:00")
	v.SetDefault("slots.night", "21:00")

	// Notify defaults
	v.SetDefault("notify.console", true)
	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", 0)
	v.SetDefault("notify.telegram.rate_per_second", 1.0)

	// API defaults
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.address", "127.0.0.1")
	v.SetDefault("api.port", 8087)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// DefaultDataDir follows XDG, falling back to ./data
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "medremind")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".local", "share", "medremind")
}

// loadEnvOverrides fills secrets from their conventional unprefixed names
func loadEnvOverrides(cfg *Config) {
	if cfg.Notify.Telegram.BotToken == "" {
		cfg.Notify.Telegram.BotToken = ResolveEnvWithAliases(envPrefix + "_NOTIFY_TELEGRAM_BOT_TOKEN")
	}
}

// Validate checks ranges and cross-field rules
func Validate(cfg *Config) error {
	invalid := func(format string, args ...interface{}) error {
		return apperrors.New(apperrors.ErrConfigInvalid.Code, fmt.Sprintf(format, args...))
	}

	s := cfg.Scheduler
	if s.PollInterval <= 0 {
		return invalid("scheduler.poll_interval must be positive")
	}
	if s.Tolerance <= 0 {
		return invalid("scheduler.tolerance must be positive")
	}
	if s.GracePeriod < s.Tolerance {
		return invalid("scheduler.grace_period (%s) must not be shorter than scheduler.tolerance (%s)", s.GracePeriod, s.Tolerance)
	}
	if s.DefaultSnooze < time.Minute {
		return invalid("scheduler.default_snooze must be at least one minute")
	}
	if s.QueueSize <= 0 {
		return invalid("scheduler.queue_size must be positive")
	}
	if _, err := s.Location(); err != nil {
		return invalid("scheduler.timezone: %v", err)
	}

	for name, at := range map[string]string{
		"morning": cfg.Slots.Morning,
		"noon":    cfg.Slots.Noon,
		"evening": cfg.Slots.Evening,
		"night":   cfg.Slots.Night,
	} {
		if _, err := time.Parse("15:04", at); err != nil {
			return invalid("slots.%s must be HH:MM, got %q", name, at)
		}
	}

	if cfg.Storage.DataDir == "" && cfg.Storage.SQLitePath == "" {
		return invalid("storage.data_dir is required")
	}

	if cfg.Notify.Telegram.Enabled && cfg.Notify.Telegram.BotToken == "" {
		return invalid("notify.telegram.bot_token is required when telegram is enabled")
	}
	if cfg.Notify.Telegram.RatePerSecond < 0 {
		return invalid("notify.telegram.rate_per_second must not be negative")
	}

	if cfg.API.Enabled && (cfg.API.Port <= 0 || cfg.API.Port > 65535) {
		return invalid("api.port out of range: %d", cfg.API.Port)
	}
	return nil
}
