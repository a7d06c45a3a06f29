package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// global configuration structure
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Calendar     CalendarConfig     `mapstructure:"calendar"`
	OpenAI       OpenAIConfig       `mapstructure:"openai"`
	Confirmation ConfirmationConfig `mapstructure:"confirmation"`
	History      HistoryConfig      `mapstructure:"history"`
	Database     DatabaseConfig     `mapstructure:"database"`
}

// HTTP server configuration
type ServerConfig struct {
	ListenPort    string `mapstructure:"listen_port"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	DebugPath     string `mapstructure:"debug_path"`
	AllowedOrigin string `mapstructure:"allowed_origin"`
	CertFile      string `mapstructure:"cert_file"`
	KeyFile       string `mapstructure:"key_file"`
}

// logging configuration
type LoggerConfig struct {
	Directory string            `mapstructure:"directory"`
	Rotation  LogRotationConfig `mapstructure:"rotation"`
	Level     string            `mapstructure:"level"`
}

// log rotation settings
type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// Google Calendar access settings
type CalendarConfig struct {
	CalendarID         string `mapstructure:"calendar_id"`
	Timezone           string `mapstructure:"timezone"`
	ServiceAccountFile string `mapstructure:"service_account_file"`
	CredentialsFile    string `mapstructure:"credentials_file"`
	TokenFile          string `mapstructure:"token_file"`
}

// OpenAI API settings for the intent parser
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// pending action confirmation settings
type ConfirmationConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// action history settings
type HistoryConfig struct {
	Capacity                int `mapstructure:"capacity"`
	RetentionSeconds        int `mapstructure:"retention_seconds"`
	LastActionWindowSeconds int `mapstructure:"last_action_window_seconds"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Charset  string `mapstructure:"charset"`
}

var cfg *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	log.Printf("Using config file: %s", v.ConfigFileUsed())

	// Unmarshal configuration
	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		log.Fatal("Configuration not initialized, call Load() first")
	}
	return cfg
}

// Location resolves the configured timezone. All timestamps handed to users
// and compared against expiry windows use this single location.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Calendar.Timezone, err)
	}
	return loc, nil
}

// ConfirmationTimeout returns the pending action time-to-live.
func (c *Config) ConfirmationTimeout() time.Duration {
	return time.Duration(c.Confirmation.TimeoutSeconds) * time.Second
}

// HistoryRetention returns the advisory history cleanup window.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.History.RetentionSeconds) * time.Second
}

// LastActionWindow returns the lookback window for "confirm/cancel last" queries.
func (c *Config) LastActionWindow() time.Duration {
	return time.Duration(c.History.LastActionWindowSeconds) * time.Second
}

func (c *Config) validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		return fmt.Errorf("invalid calendar.timezone %q: %w", c.Calendar.Timezone, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_port", "5000")
	v.SetDefault("server.webhook_secret", "")
	v.SetDefault("server.debug_path", "/debug")
	v.SetDefault("server.allowed_origin", "*")
	v.SetDefault("server.cert_file", "")
	v.SetDefault("server.key_file", "")

	v.SetDefault("logger.directory", "logs")
	v.SetDefault("logger.rotation.max_size", 10)
	v.SetDefault("logger.rotation.max_backups", 30)
	v.SetDefault("logger.rotation.max_age", 90)
	v.SetDefault("logger.rotation.compress", true)
	v.SetDefault("logger.level", "INFO")

	v.SetDefault("calendar.calendar_id", "primary")
	v.SetDefault("calendar.timezone", "America/New_York")
	v.SetDefault("calendar.service_account_file", "service-account.json")
	v.SetDefault("calendar.credentials_file", "credentials.json")
	v.SetDefault("calendar.token_file", "token.json")

	v.SetDefault("openai.model", "gpt-4-turbo-preview")
	v.SetDefault("openai.base_url", "")

	v.SetDefault("confirmation.timeout_seconds", 300)

	v.SetDefault("history.capacity", 50)
	v.SetDefault("history.retention_seconds", 300)
	v.SetDefault("history.last_action_window_seconds", 120)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.charset", "utf8mb4")
}
