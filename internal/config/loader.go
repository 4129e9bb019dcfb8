package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigFileName is the default config file name.
const ConfigFileName = "askdb.yaml"

// ConfigFileNameAlt is the alternate config file name.
const ConfigFileNameAlt = "askdb.yml"

// EnvPrefix prefixes environment variable overrides. Nesting uses a
// double underscore: ASKDB_LLM__API_KEY maps to llm.api_key.
const EnvPrefix = "ASKDB_"

// findConfigFile finds the config file to use.
// Priority: explicit path > askdb.yaml > askdb.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(ConfigFileName); err == nil {
		return ConfigFileName
	}
	if _, err := os.Stat(ConfigFileNameAlt); err == nil {
		return ConfigFileNameAlt
	}
	return ""
}

// flagKeys maps CLI flag names to config keys where the snake_case
// transform alone is not enough.
var flagKeys = map[string]string{
	"addr":        "server.addr",
	"database":    "database.path",
	"db_type":     "database.type",
	"dsn":         "database.dsn",
	"max_rows":    "database.max_rows",
	"history":     "history.path",
	"provider":    "llm.provider",
	"model":       "llm.model",
	"base_url":    "llm.base_url",
	"api_key":     "llm.api_key",
	"max_retries": "pipeline.max_retries",
	"max_results": "pipeline.max_results",
}

// Load builds the configuration from defaults, an optional config file,
// environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"server.addr":          DefaultAddr,
		"database.type":        "sqlite",
		"database.path":        DefaultDatabase,
		"database.max_rows":    DefaultMaxRows,
		"history.path":         DefaultHistoryPath,
		"llm.provider":         DefaultProvider,
		"pipeline.max_retries": DefaultMaxRetries,
		"pipeline.max_results": DefaultMaxResults,
		"verbose":              false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if configFile := findConfigFile(cfgFile); configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	// 3. Environment variables (ASKDB_ prefix)
	// Transform: ASKDB_LLM__API_KEY -> llm.api_key
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if mapped, ok := flagKeys[key]; ok {
				key = mapped
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
