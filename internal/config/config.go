// ABOUTME: Configuration loading and parsing for the atrium host.
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/atriumhq/atrium/internal/panel"
)

// Config represents the complete host configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Bus     BusConfig     `yaml:"bus"`
	Panels  PanelsConfig  `yaml:"panels"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BusConfig holds message routing configuration. Zero values select the
// component defaults.
type BusConfig struct {
	QueueSize      int `yaml:"queue_size"`
	EndpointBuffer int `yaml:"endpoint_buffer"`

	RequestTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	RequestTimeoutRaw string `yaml:"request_timeout"`
}

// PanelsConfig holds the panel definition sources: definitions inlined in
// the config file plus an optional directory of manifest files.
type PanelsConfig struct {
	ManifestDir string             `yaml:"manifest_dir"`
	Definitions []panel.Definition `yaml:"definitions"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all configured fields are usable. Returns an error
// describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Bus.QueueSize < 0 {
		return fmt.Errorf("bus.queue_size must not be negative")
	}
	if c.Bus.EndpointBuffer < 0 {
		return fmt.Errorf("bus.endpoint_buffer must not be negative")
	}

	seen := make(map[string]bool)
	for i, def := range c.Panels.Definitions {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("panels.definitions[%d]: %w", i, err)
		}
		if seen[def.ID] {
			return fmt.Errorf("panels.definitions[%d]: duplicate id %q", i, def.ID)
		}
		seen[def.ID] = true
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Bus.RequestTimeoutRaw != "" {
		cfg.Bus.RequestTimeout, err = time.ParseDuration(cfg.Bus.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Bus.RequestTimeoutRaw, err)
		}
	}

	return nil
}
