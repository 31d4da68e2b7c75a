// Package config loads the configuration of the rxcopy command.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultChunkSize        = 64 * 1024
	defaultMaxConcurrency   = 4
	defaultProgressInterval = time.Second
	defaultLogLevel         = "info"
)

// Config is the complete configuration of the rxcopy command.
type Config struct {
	Copy CopyConfig `yaml:"copy"`
	Log  LogConfig  `yaml:"log"`
}

// CopyConfig configures the copy itself.
type CopyConfig struct {
	ChunkSize        int           `yaml:"chunk_size"`
	MaxConcurrency   int64         `yaml:"max_concurrency"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
	BufferSize       int           `yaml:"buffer_size"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Copy: CopyConfig{
			ChunkSize:        defaultChunkSize,
			MaxConcurrency:   defaultMaxConcurrency,
			ProgressInterval: defaultProgressInterval,
		},
		Log: LogConfig{
			Level: defaultLogLevel,
		},
	}
}

// LoadFromFile loads configuration from a YAML file, with environment
// variable substitution, over the defaults.
func LoadFromFile(configPath string) (*Config, error) {
	cleanPath := filepath.Clean(configPath)

	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	config := Default()
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadEnvFiles loads environment variables from the .env files that exist,
// in order. Variables already set take precedence.
func LoadEnvFiles(envFiles []string) ([]string, error) {
	var loaded []string
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		if err := godotenv.Load(envFile); err != nil {
			return loaded, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
		loaded = append(loaded, envFile)
	}
	return loaded, nil
}

// Validate checks the configuration for values that cannot be used.
func (c *Config) Validate() error {
	if c.Copy.ChunkSize <= 0 {
		return fmt.Errorf("copy.chunk_size must be positive, got %d", c.Copy.ChunkSize)
	}
	if c.Copy.MaxConcurrency <= 0 {
		return fmt.Errorf("copy.max_concurrency must be positive, got %d", c.Copy.MaxConcurrency)
	}
	if c.Copy.ProgressInterval <= 0 {
		return fmt.Errorf("copy.progress_interval must be positive, got %s", c.Copy.ProgressInterval)
	}
	if c.Copy.BufferSize < 0 {
		return fmt.Errorf("copy.buffer_size must not be negative, got %d", c.Copy.BufferSize)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns with environment variables
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) > 2 && submatches[2] != "" {
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}
