package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"EditorialPlanner/internal/tiering"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "EDITORIAL_PLANNER_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Planner       PlannerConfig      `yaml:"planner"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN
// selects the in-memory store (useful for dry runs and tests).
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulerConfig defines when planning passes run.
type SchedulerConfig struct {
	IntervalHours int            `yaml:"intervalHours"`
	Timezone      string         `yaml:"timezone"`
	location      *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// Interval converts the configured hours to a duration.
func (s SchedulerConfig) Interval() time.Duration {
	if s.IntervalHours < 1 {
		return 24 * time.Hour
	}
	return time.Duration(s.IntervalHours) * time.Hour
}

// PlannerConfig tunes the allocation engine.
type PlannerConfig struct {
	// HorizonDays is how far ahead each planning pass fills slots.
	HorizonDays int `yaml:"horizonDays"`
	// StaleHorizonDays is the advisory staleness age for queued ideas.
	StaleHorizonDays int `yaml:"staleHorizonDays"`
	// Thresholds are the minimum mean scores per tier.
	Thresholds tiering.Thresholds `yaml:"tierThresholds"`
}

// StaleHorizon converts the configured days to a duration.
func (p PlannerConfig) StaleHorizon() time.Duration {
	if p.StaleHorizonDays < 1 {
		return 0 // resolved to the queue package default downstream
	}
	return time.Duration(p.StaleHorizonDays) * 24 * time.Hour
}

// NotificationConfig encapsulates outbound operator channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send digests.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if err := cfg.Planner.Thresholds.Validate(); err != nil {
		log.Printf("config: %v (falling back to defaults)", err)
		cfg.Planner.Thresholds = tiering.DefaultThresholds()
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Scheduler.IntervalHours > 0 {
		base.Scheduler.IntervalHours = override.Scheduler.IntervalHours
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Planner.HorizonDays > 0 {
		base.Planner.HorizonDays = override.Planner.HorizonDays
	}
	if override.Planner.StaleHorizonDays > 0 {
		base.Planner.StaleHorizonDays = override.Planner.StaleHorizonDays
	}
	if (override.Planner.Thresholds != tiering.Thresholds{}) {
		base.Planner.Thresholds = override.Planner.Thresholds
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database:  DatabaseConfig{DSN: ""},
		Scheduler: SchedulerConfig{IntervalHours: 24, Timezone: defaultTimezone, location: tz},
		Planner: PlannerConfig{
			HorizonDays:      7,
			StaleHorizonDays: 30,
			Thresholds:       tiering.DefaultThresholds(),
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}
