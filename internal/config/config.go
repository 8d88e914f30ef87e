package config

import (
	"os"
	"strconv"
	"time"

	"gomic/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Data       DataConfig
	Estimation EstimationConfig
}

// DatabaseConfig holds run-ledger connection settings. The ledger is
// optional: with no DATABASE_URL runs are kept in memory only.
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// Enabled reports whether a persistent ledger was configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// ServerConfig holds results API server settings
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// DataConfig holds dataset loading settings
type DataConfig struct {
	DatasetFile string
	SheetName   string
}

// EstimationConfig holds default estimation parameters used by the CLI
// when flags are omitted.
type EstimationConfig struct {
	Capacity   int
	Lags       int
	MaxDepth   int
	Resolution int
	Workers    int
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database:   loadDatabaseConfig(),
		Server:     loadServerConfig(),
		Data:       loadDataConfig(),
		Estimation: loadEstimationConfig(),
	}
	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:     getEnvOrDefault("DATABASE_URL", ""),
		SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:            getEnvOrDefault("PORT", "8080"),
		ShutdownTimeout: getEnvDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func loadDataConfig() DataConfig {
	return DataConfig{
		DatasetFile: getEnvOrDefault("DATASET_FILE", ""),
		SheetName:   getEnvOrDefault("DATASET_SHEET", "Sheet1"),
	}
}

func loadEstimationConfig() EstimationConfig {
	return EstimationConfig{
		Capacity:   getEnvIntOrDefault("MIC_CAPACITY", 1<<20),
		Lags:       getEnvIntOrDefault("MIC_LAGS", 1),
		MaxDepth:   getEnvIntOrDefault("MIC_MAX_DEPTH", 24),
		Resolution: getEnvIntOrDefault("MIC_RESOLUTION", 7),
		Workers:    getEnvIntOrDefault("MIC_WORKERS", 0), // 0 = GOMAXPROCS
	}
}

func validateConfig(config *Config) error {
	if config.Estimation.Capacity < 1 {
		return errors.ConfigInvalid("MIC_CAPACITY must be positive")
	}
	if config.Estimation.MaxDepth < 1 {
		return errors.ConfigInvalid("MIC_MAX_DEPTH must be positive")
	}
	if config.Estimation.Resolution < 1 {
		return errors.ConfigInvalid("MIC_RESOLUTION must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
