// Package config loads the optional devmon.yaml configuration file.
// devmon runs fine without one; every field has a default.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tessland/devmon/internal/constants"
	"github.com/tessland/devmon/internal/domain"
)

// Config represents the top-level devmon configuration
type Config struct {
	API       APIConfig      `yaml:"api"`
	EnvFile   string         `yaml:"env_file"`
	StateFile string         `yaml:"state_file"`
	Registry  RegistryConfig `yaml:"registry"`
	Console   ConsoleConfig  `yaml:"console"`
}

// APIConfig defines the HTTP API configuration
type APIConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	Auth *bool  `yaml:"auth,omitempty"` // nil = auto-determine based on host
}

// RegistryConfig tunes the process registry. Window durations are YAML
// strings like "500ms" or "2s".
type RegistryConfig struct {
	BufferLines   int    `yaml:"buffer_lines"`
	ChunkLimit    int    `yaml:"chunk_limit"`
	ConfirmWindow string `yaml:"confirm_window"`
	GracePeriod   string `yaml:"grace_period"`
}

// ConsoleConfig tunes the browser console log store
type ConsoleConfig struct {
	GroupCap  int `yaml:"group_cap"`
	GlobalCap int `yaml:"global_cap"`
}

// Default returns the configuration used when no config file exists
func Default() *Config {
	return &Config{
		API: APIConfig{
			Host: constants.DefaultAPIHost,
			Port: constants.DefaultAPIPort,
		},
		Registry: RegistryConfig{
			BufferLines: constants.DefaultLogBufferLines,
			ChunkLimit:  constants.DefaultLogChunkLimit,
		},
		Console: ConsoleConfig{
			GroupCap:  constants.DefaultConsoleGroupCap,
			GlobalCap: constants.DefaultConsoleGlobalCap,
		},
	}
}

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("checking config file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// LoadOrDefault loads the config file if present and falls back to defaults
// when it does not exist. Any other failure is still an error.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, domain.ErrConfigNotFound) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Parse parses configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	// Re-apply defaults the unmarshal may have zeroed
	if config.API.Port == 0 {
		config.API.Port = constants.DefaultAPIPort
	}
	if config.API.Host == "" {
		config.API.Host = constants.DefaultAPIHost
	}
	if config.Registry.BufferLines == 0 {
		config.Registry.BufferLines = constants.DefaultLogBufferLines
	}
	if config.Registry.ChunkLimit == 0 {
		config.Registry.ChunkLimit = constants.DefaultLogChunkLimit
	}
	if config.Console.GroupCap == 0 {
		config.Console.GroupCap = constants.DefaultConsoleGroupCap
	}
	if config.Console.GlobalCap == 0 {
		config.Console.GlobalCap = constants.DefaultConsoleGlobalCap
	}

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for invalid values
func Validate(c *Config) error {
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("%w: api port %d out of range", domain.ErrInvalidConfig, c.API.Port)
	}
	if c.Registry.BufferLines < 0 || c.Registry.ChunkLimit < 0 {
		return fmt.Errorf("%w: registry buffer sizes must be non-negative", domain.ErrInvalidConfig)
	}
	if c.Console.GroupCap < 0 || c.Console.GlobalCap < 0 {
		return fmt.Errorf("%w: console caps must be non-negative", domain.ErrInvalidConfig)
	}
	if c.Console.GroupCap > 0 && c.Console.GlobalCap > 0 && c.Console.GroupCap > c.Console.GlobalCap {
		return fmt.Errorf("%w: console group_cap exceeds global_cap", domain.ErrInvalidConfig)
	}
	for _, field := range []struct{ name, value string }{
		{"confirm_window", c.Registry.ConfirmWindow},
		{"grace_period", c.Registry.GracePeriod},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("%w: registry %s: %v", domain.ErrInvalidConfig, field.name, err)
		}
	}
	return nil
}

// ConfirmWindowDuration returns the configured confirmation window or the default
func (c *RegistryConfig) ConfirmWindowDuration() time.Duration {
	if d, err := time.ParseDuration(c.ConfirmWindow); err == nil && d > 0 {
		return d
	}
	return constants.StartConfirmWindow
}

// GracePeriodDuration returns the configured stop grace period or the default
func (c *RegistryConfig) GracePeriodDuration() time.Duration {
	if d, err := time.ParseDuration(c.GracePeriod); err == nil && d > 0 {
		return d
	}
	return constants.StopGracePeriod
}
