// Package config loads service configuration from an optional YAML file
// and the environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrDatabaseURLNotSet carries the exact operator-facing startup error.
var ErrDatabaseURLNotSet = errors.New("Database URL is not set. Please set ARCHESTRA_DATABASE_URL or DATABASE_URL")

// Config is the complete service configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Database      DatabaseConfig      `yaml:"database" json:"database"`
	LLM           LLMConfig           `yaml:"llm" json:"llm"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DatabaseConfig configures the Postgres connection.
type DatabaseConfig struct {
	// URL is the Postgres DSN. ARCHESTRA_DATABASE_URL takes precedence,
	// then DATABASE_URL, then this field.
	URL          string `yaml:"url" json:"url"`
	MaxOpenConns int    `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns" json:"max_idle_conns"`
}

// LLMConfig configures the upstream providers and the dual-LLM models.
type LLMConfig struct {
	OpenAI    ProviderConfig `yaml:"openai" json:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic" json:"anthropic"`
}

// ProviderConfig holds one provider's credentials and model selection
// for dual-LLM sessions. An empty API key is tolerated at startup and
// surfaces as a configuration error on first upstream call.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key" json:"api_key"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Model   string `yaml:"model" json:"model"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`
}

// Default returns the configuration used before any file or environment
// overrides are applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            9000,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		LLM: LLMConfig{
			OpenAI:    ProviderConfig{Model: "gpt-4o"},
			Anthropic: ProviderConfig{Model: "claude-sonnet-4-20250514"},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, then validates it. A missing database URL is a fatal
// configuration error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ARCHESTRA_DATABASE_URL"); v != "" {
		c.Database.URL = v
	} else if v := os.Getenv("DATABASE_URL"); v != "" && c.Database.URL == "" {
		c.Database.URL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.OpenAI.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.LLM.Anthropic.APIKey = v
	}
	if v := os.Getenv("ARCHESTRA_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("ARCHESTRA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("ARCHESTRA_LOG_LEVEL"); v != "" {
		c.Observability.LogLevel = v
	}
	if v := os.Getenv("ARCHESTRA_LOG_FORMAT"); v != "" {
		c.Observability.LogFormat = v
	}
}

// Validate checks the configuration for fatal problems.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return ErrDatabaseURLNotSet
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch strings.ToLower(c.Observability.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Observability.LogLevel)
	}
	return nil
}
