package reactor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-reactor/pkg/activity"
	"gopkg.in/yaml.v3"
)

// Config is the file form of the runtime options that make sense outside
// code.
type Config struct {
	Activity activity.Config `yaml:"activity"`
	Logging  LoggingConfig   `yaml:"logging"`
	Metrics  MetricsConfig   `yaml:"metrics"`
}

// LoggingConfig selects the log level for logger adapters.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig controls Prometheus metric registration.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

const (
	DefaultLogLevel         = "info"
	DefaultMetricsNamespace = "reactor"
)

var errUnknownLogLevel = errors.New("unknown log level")

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Activity: activity.Config{Channel: activity.DefaultChannel},
		Logging:  LoggingConfig{Level: DefaultLogLevel},
		Metrics:  MetricsConfig{Namespace: DefaultMetricsNamespace},
	}
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("reactor: read config: %w", err)
	}
	return ParseConfig(contents)
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
func ParseConfig(contents []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("reactor: unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fills defaults and rejects unknown log levels.
func (c *Config) Validate() error {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("reactor: %w %q", errUnknownLogLevel, c.Logging.Level)
	}
	if strings.TrimSpace(c.Metrics.Namespace) == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}
	if strings.TrimSpace(c.Activity.Channel) == "" {
		c.Activity.Channel = activity.DefaultChannel
	}
	return nil
}

// Options converts the configuration into runtime options.
func (c Config) Options() []Option {
	return []Option{WithActivityConfig(c.Activity)}
}
