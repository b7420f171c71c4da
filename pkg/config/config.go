// Package config provides simple configuration loading
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ArtifactDB/alabaster-go/pkg/logger"
	"github.com/ArtifactDB/alabaster-go/pkg/observability"
	stringpool "github.com/ArtifactDB/alabaster-go/pkg/strings"
	"github.com/ArtifactDB/alabaster-go/pkg/validate"
)

// Config is the top-level configuration for the validation tooling.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Validation ValidationConfig `yaml:"validation"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// TracingConfig mirrors the observability package options.
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"`
	Environment    string  `yaml:"environment"`
	SamplingRate   float64 `yaml:"sampling_rate"`
}

// LoggingConfig mirrors the logger package options.
type LoggingConfig struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	Development bool     `yaml:"development"`
	OutputPaths []string `yaml:"output_paths"`
}

// ValidationConfig tunes directory traversal.
type ValidationConfig struct {
	MaxDepth int `yaml:"max_depth"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:       "info",
			Encoding:    "json",
			OutputPaths: []string{"stdout"},
		},
		Validation: ValidationConfig{
			MaxDepth: validate.DefaultMaxDepth,
		},
		Tracing: TracingConfig{
			ServiceName:  "alabaster",
			SamplingRate: 1.0,
		},
	}
}

// Observability converts the tracing section into observability options.
func (c *Config) Observability() observability.TracingConfig {
	return observability.TracingConfig{
		ServiceName:    c.Tracing.ServiceName,
		ServiceVersion: c.Tracing.ServiceVersion,
		Environment:    c.Tracing.Environment,
		SamplingRate:   c.Tracing.SamplingRate,
	}
}

// Logger converts the logging section into logger options.
func (c *Config) Logger() logger.Config {
	return logger.Config{
		Level:       c.Logging.Level,
		Development: c.Logging.Development,
		Encoding:    c.Logging.Encoding,
		OutputPaths: c.Logging.OutputPaths,
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Validation.MaxDepth <= 0 {
		return fmt.Errorf("validation.max_depth must be positive, got %d", c.Validation.MaxDepth)
	}
	switch c.Logging.Encoding {
	case "", "json", "console":
	default:
		return fmt.Errorf("unsupported logging.encoding %q", c.Logging.Encoding)
	}
	return nil
}

// Load loads a configuration from a YAML file
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller and validated
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Substitute environment variables
	content := string(data)
	content = substituteEnvVars(content)

	if err := yaml.Unmarshal(stringpool.StringToBytes(content), config); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// LoadFile reads a Config, applying defaults for absent sections.
func LoadFile(filePath string) (*Config, error) {
	cfg := Default()
	if err := Load(filePath, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
