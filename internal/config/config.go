package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Reddit    RedditConfig    `mapstructure:"reddit"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Classify  ClassifyConfig  `mapstructure:"classify"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Health    HealthConfig    `mapstructure:"health"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"` // SQLite file path
}

// RedditConfig holds Reddit API settings
type RedditConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Subreddit    string `mapstructure:"subreddit"`
	UserAgent    string `mapstructure:"user_agent"`
	FetchLimit   int    `mapstructure:"fetch_limit"`
}

// HasCredentials reports whether API credentials are configured. Without
// them the bot falls back to the subreddit's public RSS feed.
func (c RedditConfig) HasCredentials() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// TelegramConfig holds Telegram bot settings
type TelegramConfig struct {
	BotToken  string `mapstructure:"bot_token"`
	ChannelID string `mapstructure:"channel_id"` // alerts are posted here
	GroupID   string `mapstructure:"group_id"`   // linked discussion group receiving auto-forwards
}

// ClassifyConfig holds submission classification settings
type ClassifyConfig struct {
	ScorePattern string `mapstructure:"score_pattern"` // regex matched against post titles
}

// ResolverConfig holds video resolution settings
type ResolverConfig struct {
	HeadlessEnabled bool   `mapstructure:"headless_enabled"`
	HeadlessURL     string `mapstructure:"headless_url"`
}

// QueueConfig holds queue maintenance settings
type QueueConfig struct {
	Retention time.Duration `mapstructure:"retention"` // keep processed rows this long
	Workers   int           `mapstructure:"workers"`   // concurrent drain workers
}

// SchedulerConfig holds poll loop settings
type SchedulerConfig struct {
	FetchPause      time.Duration `mapstructure:"fetch_pause"`      // pause between fetch and drain
	ForwardGrace    time.Duration `mapstructure:"forward_grace"`    // wait for the channel-to-group auto-forward
	MaintenanceCron string        `mapstructure:"maintenance_cron"` // daily purge + stats job
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// HealthConfig holds health/metrics server settings
type HealthConfig struct {
	Port string `mapstructure:"port"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in current directory and configs folder
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		// Also check user's home directory
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".goal-relay"))
		}
	}

	v.AutomaticEnv()

	// Explicit bindings for the env names the bot has always used
	// (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("reddit.client_id", "REDDIT_CLIENT_ID")
	v.BindEnv("reddit.client_secret", "REDDIT_CLIENT_SECRET")
	v.BindEnv("reddit.subreddit", "REDDIT_SUBREDDIT")
	v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("telegram.channel_id", "TELEGRAM_CHANNEL_ID")
	v.BindEnv("telegram.group_id", "TELEGRAM_GROUP_ID")
	v.BindEnv("classify.score_pattern", "SCORE_PATTERN")
	v.BindEnv("database.dsn", "DB_PATH")
	v.BindEnv("logging.level", "LOG_LEVEL")

	// DEBUG=1 overrides the log level, same switch the bot has always honored
	if os.Getenv("DEBUG") != "" {
		v.Set("logging.level", "debug")
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.dsn", "./data/soccer_goals.db")

	// Reddit defaults
	v.SetDefault("reddit.subreddit", "soccer")
	v.SetDefault("reddit.user_agent", "goal-relay-bot/1.0")
	v.SetDefault("reddit.fetch_limit", 10)

	// Classification defaults: optional brackets around two integers
	// separated by a dash, e.g. "[2]-[1]" or "2-1"
	v.SetDefault("classify.score_pattern", `\[?\d+\]?\s*-\s*\[?\d+\]?`)

	// Resolver defaults
	v.SetDefault("resolver.headless_enabled", true)
	v.SetDefault("resolver.headless_url", "https://try.playwright.tech/service/control/run")

	// Queue defaults
	v.SetDefault("queue.retention", 72*time.Hour)
	v.SetDefault("queue.workers", 2)

	// Scheduler defaults
	v.SetDefault("scheduler.fetch_pause", 20*time.Second)
	v.SetDefault("scheduler.forward_grace", 5*time.Second)
	v.SetDefault("scheduler.maintenance_cron", "30 4 * * *")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")

	// Health defaults
	v.SetDefault("health.port", "10000")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChannelID == "" {
		return fmt.Errorf("telegram.channel_id is required")
	}
	if c.Telegram.GroupID == "" {
		return fmt.Errorf("telegram.group_id is required")
	}
	if c.Queue.Workers < 1 {
		return fmt.Errorf("queue.workers must be at least 1")
	}
	return nil
}
