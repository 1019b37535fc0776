package logging

import (
	"os"
	"strings"
)

// Environment types
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// GetConfigFromEnv creates a logger configuration based on environment variables
func GetConfigFromEnv() Config {
	config := DefaultConfig

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Level = strings.ToLower(level)
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Format = strings.ToLower(format)
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		config.Environment = strings.ToLower(env)
	}

	if addSource := os.Getenv("LOG_ADD_SOURCE"); addSource != "" {
		config.AddSource = strings.ToLower(addSource) == "true"
	}

	// Environment-specific defaults
	switch config.Environment {
	case EnvProduction:
		// Production: JSON format, INFO level, no source info for performance
		if config.Format == "" {
			config.Format = "json"
		}
		if config.Level == "" {
			config.Level = "info"
		}
		config.AddSource = false

	case EnvTest:
		// Test: Text format for readability, DEBUG level
		if config.Format == "" {
			config.Format = "text"
		}
		if config.Level == "" {
			config.Level = "debug"
		}

	case EnvDevelopment:
		if config.Format == "" {
			config.Format = "text"
		}
		if config.Level == "" {
			config.Level = "debug"
		}
		config.AddSource = true
	}

	return config
}
