// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	AgentHostURL       string   // Public host URL where the agent is reachable
	APIKeys            []string // API keys accepted on data endpoints
	OpenRouterAPIKey   string   // OpenRouter key for LLM calls
	OpenRouterModel    string   // Chat model used for summaries
	FMPAPIKey          string   // Financial Modeling Prep key for price data
	DataFolderPath     string   // Local data folder (used when S3 is disabled)
	AllocationDataFile string   // Key/filename of the allocations document
	TaskDataFile       string   // Key/filename of the tasks document
	S3Enabled          bool
	S3Endpoint         string
	S3AccessKey        string
	S3SecretKey        string
	S3BucketName       string
	LogLevel           string
	Port               int
	DevMode            bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		AgentHostURL:       getEnv("AGENT_HOST_URL", ""),
		APIKeys:            splitKeys(getEnv("APP_API_KEY", "")),
		OpenRouterAPIKey:   getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterModel:    getEnv("OPENROUTER_MODEL", "openai/gpt-4o"),
		FMPAPIKey:          getEnv("FMP_API_KEY", ""),
		DataFolderPath:     getEnv("DATA_FOLDER_PATH", ""),
		AllocationDataFile: getEnv("ALLOCATION_DATA_FILE", "allocations.json"),
		TaskDataFile:       getEnv("TASK_DATA_FILE", "tasks.json"),
		S3Enabled:          getEnvAsBool("S3_ENABLED", false),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3AccessKey:        getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:        getEnv("S3_SECRET_KEY", ""),
		S3BucketName:       getEnv("S3_BUCKET_NAME", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Port:               getEnvAsInt("PORT", 8000),
		DevMode:            getEnvAsBool("DEV_MODE", false),
	}

	if !cfg.S3Enabled && cfg.DataFolderPath != "" {
		// Always resolve to absolute path and ensure the folder exists
		absPath, err := filepath.Abs(cfg.DataFolderPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data folder path: %w", err)
		}
		if err := os.MkdirAll(absPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data folder: %w", err)
		}
		cfg.DataFolderPath = absPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.AgentHostURL == "" {
		return fmt.Errorf("AGENT_HOST_URL environment variable is required")
	}
	if len(c.APIKeys) == 0 {
		return fmt.Errorf("APP_API_KEY environment variable is required")
	}
	if c.OpenRouterAPIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY environment variable is required")
	}
	if c.FMPAPIKey == "" {
		return fmt.Errorf("FMP_API_KEY environment variable is required")
	}

	if c.S3Enabled {
		if c.S3Endpoint == "" || c.S3AccessKey == "" || c.S3SecretKey == "" || c.S3BucketName == "" {
			return fmt.Errorf("S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY and S3_BUCKET_NAME must be set when S3 is enabled")
		}
	} else if c.DataFolderPath == "" {
		return fmt.Errorf("DATA_FOLDER_PATH must be set when S3 is not enabled")
	}

	return nil
}

// splitKeys parses a comma-separated list of API keys.
func splitKeys(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
