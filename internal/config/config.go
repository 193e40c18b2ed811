package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Auth     AuthConfig     `yaml:"auth"`
	Mail     MailConfig     `yaml:"mail"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LLMConfig contains text-generation service settings. The reflection proxy
// and the weekly analysis job may use different models.
type LLMConfig struct {
	APIKey          string `yaml:"-"` // env-only, never in YAML
	ReflectionModel string `yaml:"reflection_model"`
	AnalysisModel   string `yaml:"analysis_model"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey     string `yaml:"-"` // env-only, never in YAML
	CronSecret string `yaml:"-"` // env-only, never in YAML
}

// MailConfig contains morning digest delivery settings.
type MailConfig struct {
	APIKey  string `yaml:"-"` // env-only, never in YAML
	From    string `yaml:"from"`
	Enabled bool   `yaml:"enabled"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("NIGHTNOTES_CONFIG_PATH", "config/nightnotes.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/nightnotes.db",
		},
		LLM: LLMConfig{
			ReflectionModel: "gpt-4o-mini",
			AnalysisModel:   "gpt-4o",
		},
		Mail: MailConfig{
			From:    "Night Notes <hello@trynightnotes.com>",
			Enabled: false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("NIGHTNOTES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("NIGHTNOTES_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("NIGHTNOTES_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("NIGHTNOTES_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Database
	if v := os.Getenv("NIGHTNOTES_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// LLM (OPENAI_API_KEY is industry convention)
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("NIGHTNOTES_REFLECTION_MODEL"); v != "" {
		cfg.LLM.ReflectionModel = v
	}
	if v := os.Getenv("NIGHTNOTES_ANALYSIS_MODEL"); v != "" {
		cfg.LLM.AnalysisModel = v
	}

	// Auth
	if v := os.Getenv("NIGHTNOTES_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("NIGHTNOTES_CRON_SECRET"); v != "" {
		cfg.Auth.CronSecret = v
	}

	// Mail
	if v := os.Getenv("RESEND_API_KEY"); v != "" {
		cfg.Mail.APIKey = v
	}
	if v := os.Getenv("NIGHTNOTES_MAIL_FROM"); v != "" {
		cfg.Mail.From = v
	}
	if v := os.Getenv("NIGHTNOTES_MAIL_ENABLED"); v != "" {
		cfg.Mail.Enabled = v == "true" || v == "1"
	}

	// Log
	if v := os.Getenv("NIGHTNOTES_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("NIGHTNOTES_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that required configuration values are set.
// In dev mode (NIGHTNOTES_DEV_MODE=true), API key validation is skipped.
func (c *Config) validate() error {
	// Dev mode bypasses API key validation
	if os.Getenv("NIGHTNOTES_DEV_MODE") == "true" {
		return nil
	}

	if c.LLM.APIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	if c.Auth.APIKey == "" {
		return errors.New("NIGHTNOTES_API_KEY is required")
	}
	if c.Auth.CronSecret == "" {
		return errors.New("NIGHTNOTES_CRON_SECRET is required")
	}
	if c.Mail.Enabled && c.Mail.APIKey == "" {
		return errors.New("RESEND_API_KEY is required when mail is enabled")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
