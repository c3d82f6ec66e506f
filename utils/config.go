package utils

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all configuration for the application
type Config struct {
	App     AppConfig
	API     APIConfig
	Session SessionConfig
	Server  ServerConfig
	Client  ClientConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name    string
	Version string
}

// APIConfig holds backend API configuration
type APIConfig struct {
	BaseURL              string
	TimeoutSeconds       int
	MaxRequestsPerMinute int
}

// SessionConfig holds session persistence configuration
type SessionConfig struct {
	DBPath string
}

// ServerConfig holds view server configuration
type ServerConfig struct {
	Port int
}

// ClientConfig holds paging configuration for list fetches
type ClientConfig struct {
	PageSize int
}

// LoadConfig loads configuration from .env file
func LoadConfig(envPath string, log *logrus.Logger) (*Config, error) {
	if envPath == "" {
		envPath = ".env"
	}

	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "Threddit Client"),
			Version: getEnv("APP_VERSION", "1.0.0"),
		},
		API: APIConfig{
			BaseURL:              getEnv("API_BASE_URL", "http://localhost:7777/api/v1"),
			TimeoutSeconds:       getEnvAsInt("API_TIMEOUT_SECONDS", 10),
			MaxRequestsPerMinute: getEnvAsInt("API_MAX_REQUESTS_PER_MINUTE", 600),
		},
		Session: SessionConfig{
			DBPath: getEnv("SESSION_DB_PATH", "./session.db"),
		},
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Client: ClientConfig{
			PageSize: getEnvAsInt("PAGE_SIZE", 20),
		},
	}

	// validation
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	log.WithField("file", envPath).Info("Config loaded successfully")
	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.API.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL environment variable is required")
	}
	if _, err := url.ParseRequestURI(config.API.BaseURL); err != nil {
		return fmt.Errorf("API_BASE_URL is not a valid URL: %w", err)
	}
	if config.API.TimeoutSeconds < 1 {
		return fmt.Errorf("API_TIMEOUT_SECONDS must be positive")
	}
	if config.API.MaxRequestsPerMinute < 1 {
		return fmt.Errorf("API_MAX_REQUESTS_PER_MINUTE must be positive")
	}
	if config.Client.PageSize < 1 || config.Client.PageSize > 100 {
		return fmt.Errorf("PAGE_SIZE must be between 1 and 100")
	}

	// if we are storing the session db in a nested directory, create the directory
	dbDir := filepath.Dir(config.Session.DBPath)
	if dbDir != "." && dbDir != "" {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create session database directory: %w", err)
		}
	}

	return nil
}
