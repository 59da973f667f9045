// Package config provides configuration management for the BuildMaster console.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	// APIURL is the base URL of the BuildMaster API, e.g. "http://localhost:8000".
	APIURL string

	// SessionToken authenticates requests to the BuildMaster API.
	SessionToken string

	// RedpandaBrokers lists Redpanda seed brokers for build event
	// notifications. Empty means notifications stay in process.
	RedpandaBrokers []string

	// PostgresDSN enables the persistent build outcome journal when set.
	PostgresDSN string

	// PresetsPath points to an optional YAML file of named build presets.
	PresetsPath string
}

// LoadFromEnv loads configuration from environment variables. A .env file in
// the working directory is read first if present; real environment variables
// win over it.
func LoadFromEnv() (*Config, error) {
	godotenv.Load()

	apiURL := os.Getenv("BUILDMASTER_API_URL")
	if apiURL == "" {
		return nil, fmt.Errorf("BUILDMASTER_API_URL environment variable is required")
	}

	token := os.Getenv("BUILDMASTER_SESSION_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("BUILDMASTER_SESSION_TOKEN environment variable is required")
	}

	cfg := &Config{
		APIURL:       strings.TrimRight(apiURL, "/"),
		SessionToken: token,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		PresetsPath:  os.Getenv("BUILDMASTER_PRESETS"),
	}

	if brokers := os.Getenv("REDPANDA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.RedpandaBrokers = append(cfg.RedpandaBrokers, b)
			}
		}
	}

	return cfg, nil
}
