// Package config loads garden-bot settings from a YAML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Recommender providers
const (
	ProviderOpenAI = "openai"
	ProviderGenAI  = "genai"
)

const (
	// DefaultReminderSchedule runs the reminder job every morning at seven
	DefaultReminderSchedule = "0 7 * * *"
	// DefaultDatabasePath is where the SQLite database lives when none is configured
	DefaultDatabasePath = "data/garden.db"
	// DefaultConfigPath is read when no --config flag is given
	DefaultConfigPath = "garden.yaml"
)

// Config holds all garden-bot configuration.
type Config struct {
	Telegram    TelegramConfig    `yaml:"telegram"`
	Recommender RecommenderConfig `yaml:"recommender"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	GenAI       GenAIConfig       `yaml:"genai"`
	Database    DatabaseConfig    `yaml:"database"`
	Frost       FrostConfig       `yaml:"frost"`
	Reminder    ReminderConfig    `yaml:"reminder"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// TelegramConfig configures the bot transport.
type TelegramConfig struct {
	Token          string `yaml:"token"`
	UpdateTimeout  int    `yaml:"update_timeout"`  // Long-poll timeout in seconds
	RequestTimeout string `yaml:"request_timeout"` // Upper bound for one command, e.g. "45s"
}

// RecommenderConfig selects the planting date provider.
type RecommenderConfig struct {
	Provider string `yaml:"provider"` // openai, genai
}

// OpenAIConfig configures the OpenAI client.
type OpenAIConfig struct {
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	ImageModel string `yaml:"image_model"`
	BaseURL    string `yaml:"base_url"`
}

// GenAIConfig configures the Gemini client.
type GenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// FrostConfig configures the frost date scraper. When enabled without a URL
// the scraper queries the default almanac page; setting a URL enables it.
type FrostConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// ReminderConfig configures the daily planting reminder job.
type ReminderConfig struct {
	Schedule    string `yaml:"schedule"` // Standard five-field cron spec
	Timezone    string `yaml:"timezone"` // IANA zone; empty means local time
	Concurrency int    `yaml:"concurrency"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Telegram: TelegramConfig{
			UpdateTimeout:  60,
			RequestTimeout: "45s",
		},
		Recommender: RecommenderConfig{Provider: ProviderOpenAI},
		Database:    DatabaseConfig{Path: DefaultDatabasePath},
		Reminder: ReminderConfig{
			Schedule:    DefaultReminderSchedule,
			Concurrency: 4,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the YAML file at path (a missing file is not an error), loads
// a .env file if present and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults plus environment only
		case err != nil:
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	fillDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables
func applyEnv(cfg *Config) {
	overrides := []struct {
		key    string
		target *string
	}{
		{"TELEGRAM_BOT_TOKEN", &cfg.Telegram.Token},
		{"OPENAI_API_KEY", &cfg.OpenAI.APIKey},
		{"GEMINI_API_KEY", &cfg.GenAI.APIKey},
		{"GARDEN_DB_PATH", &cfg.Database.Path},
		{"GARDEN_RECOMMENDER", &cfg.Recommender.Provider},
		{"GARDEN_FROST_URL", &cfg.Frost.URL},
		{"GARDEN_LOG_LEVEL", &cfg.Logging.Level},
		{"GARDEN_REMINDER_SCHEDULE", &cfg.Reminder.Schedule},
		{"GARDEN_TIMEZONE", &cfg.Reminder.Timezone},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && strings.TrimSpace(v) != "" {
			*o.target = strings.TrimSpace(v)
		}
	}
	if cfg.Frost.URL != "" {
		cfg.Frost.Enabled = true
	}
}

func fillDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Telegram.UpdateTimeout <= 0 {
		cfg.Telegram.UpdateTimeout = def.Telegram.UpdateTimeout
	}
	if cfg.Telegram.RequestTimeout == "" {
		cfg.Telegram.RequestTimeout = def.Telegram.RequestTimeout
	}
	if cfg.Recommender.Provider == "" {
		cfg.Recommender.Provider = def.Recommender.Provider
	}
	cfg.Recommender.Provider = strings.ToLower(cfg.Recommender.Provider)
	if cfg.Database.Path == "" {
		cfg.Database.Path = def.Database.Path
	}
	if cfg.Reminder.Schedule == "" {
		cfg.Reminder.Schedule = def.Reminder.Schedule
	}
	if cfg.Reminder.Concurrency <= 0 {
		cfg.Reminder.Concurrency = def.Reminder.Concurrency
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
}

// Validate checks values that would otherwise fail late at runtime.
func (c Config) Validate() error {
	switch c.Recommender.Provider {
	case ProviderOpenAI, ProviderGenAI:
	default:
		return fmt.Errorf("unknown recommender provider %q", c.Recommender.Provider)
	}
	if _, err := time.ParseDuration(c.Telegram.RequestTimeout); err != nil {
		return fmt.Errorf("invalid telegram.request_timeout %q: %w", c.Telegram.RequestTimeout, err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// RequestTimeout returns the parsed per-command timeout.
func (c Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Telegram.RequestTimeout)
	if err != nil {
		return 45 * time.Second
	}
	return d
}

// Location returns the reminder time zone.
func (c Config) Location() (*time.Location, error) {
	if c.Reminder.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Reminder.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid reminder.timezone %q: %w", c.Reminder.Timezone, err)
	}
	return loc, nil
}
