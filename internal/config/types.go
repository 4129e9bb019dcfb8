// Package config loads the application configuration from defaults, an
// optional YAML file, ASKDB_-prefixed environment variables, and CLI
// flags, in ascending precedence.
package config

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/askdb/internal/store"
)

// Default configuration values.
const (
	DefaultAddr        = ":8080"
	DefaultDatabase    = "askdb.db"
	DefaultHistoryPath = "askdb_history.db"
	DefaultProvider    = "mock"
	DefaultMaxRetries  = 2
	DefaultMaxResults  = 100
	DefaultMaxRows     = 1000
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LLMConfig selects and configures the language model provider.
type LLMConfig struct {
	// Provider is "openai" or "mock".
	Provider string `koanf:"provider"`

	APIKey      string        `koanf:"api_key"`
	Model       string        `koanf:"model"`
	BaseURL     string        `koanf:"base_url"`
	Timeout     time.Duration `koanf:"timeout"`
	Temperature float32       `koanf:"temperature"`
}

// PipelineConfig bounds pipeline behavior.
type PipelineConfig struct {
	MaxRetries int `koanf:"max_retries"`
	MaxResults int `koanf:"max_results"`
}

// HistoryConfig locates the query history store.
type HistoryConfig struct {
	Path string `koanf:"path"`
}

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database store.Config   `koanf:"database"`
	History  HistoryConfig  `koanf:"history"`
	LLM      LLMConfig      `koanf:"llm"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Verbose  bool           `koanf:"verbose"`
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabase
	}
	if c.Database.MaxRows == 0 {
		c.Database.MaxRows = DefaultMaxRows
	}
	if c.History.Path == "" {
		c.History.Path = DefaultHistoryPath
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = DefaultProvider
	}
	if c.Pipeline.MaxRetries == 0 {
		c.Pipeline.MaxRetries = DefaultMaxRetries
	}
	if c.Pipeline.MaxResults == 0 {
		c.Pipeline.MaxResults = DefaultMaxResults
	}
}

// Validate checks the configuration for unusable combinations.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "mock":
	default:
		return fmt.Errorf("unknown llm provider %q (available: openai, mock)", c.LLM.Provider)
	}
	if c.LLM.Provider == "openai" && c.LLM.APIKey == "" && c.LLM.BaseURL == "" {
		return fmt.Errorf("llm provider openai requires api_key or base_url")
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("pipeline max_retries must not be negative")
	}
	return nil
}
