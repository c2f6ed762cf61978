package config

import (
	"os"
	"strconv"
	"time"

	"overcount/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Output  OutputConfig `validate:"required"`
	Server  ServerConfig `validate:"required"`
	Archive ArchiveConfig
	Sim     SimConfig
}

// OutputConfig holds paths for rendered artifacts
type OutputConfig struct {
	Dir        string `validate:"required"`
	ReportFile string `validate:"required"`
	WriteCSV   bool
	WriteXLSX  bool
	CILevel    float64
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port         string `validate:"required"`
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ArchiveConfig holds run archive settings
type ArchiveConfig struct {
	Path    string
	Enabled bool
}

// SimConfig holds generator overrides
type SimConfig struct {
	ConfigFile string

	// Seed overrides the generator default when nonzero
	Seed int64
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	// Load output configuration
	outputConfig := loadOutputConfig()
	config.Output = *outputConfig

	// Load server configuration
	serverConfig := loadServerConfig()
	config.Server = *serverConfig

	// Load archive configuration
	archiveConfig := loadArchiveConfig()
	config.Archive = *archiveConfig

	// Load simulation configuration
	simConfig := loadSimConfig()
	config.Sim = *simConfig

	// Validate required fields
	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadOutputConfig() *OutputConfig {
	return &OutputConfig{
		Dir:        getEnvOrDefault("OUTPUT_DIR", "out"),
		ReportFile: getEnvOrDefault("REPORT_FILE", "report.html"),
		WriteCSV:   getEnvBoolOrDefault("WRITE_CSV", true),
		WriteXLSX:  getEnvBoolOrDefault("WRITE_XLSX", false),
		CILevel:    getEnvFloatOrDefault("CI_LEVEL", 0.95),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:         getEnvOrDefault("PORT", "8080"),
		ReadTimeout:  getEnvDurationOrDefault("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout: getEnvDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
	}
}

func loadArchiveConfig() *ArchiveConfig {
	return &ArchiveConfig{
		Path:    getEnvOrDefault("ARCHIVE_PATH", "overcount.db"),
		Enabled: getEnvBoolOrDefault("ARCHIVE_ENABLED", true),
	}
}

func loadSimConfig() *SimConfig {
	return &SimConfig{
		ConfigFile: getEnvOrDefault("SIM_CONFIG", ""),
		Seed:       int64(getEnvIntOrDefault("SIM_SEED", 0)),
	}
}

func validateConfig(config *Config) error {
	if config.Output.Dir == "" {
		return errors.ConfigInvalid("output directory is required")
	}
	if config.Output.ReportFile == "" {
		return errors.ConfigInvalid("report file name is required")
	}
	if config.Archive.Enabled && config.Archive.Path == "" {
		return errors.ConfigInvalid("archive path is required when the archive is enabled")
	}
	if config.Output.CILevel <= 0 || config.Output.CILevel >= 1 {
		return errors.ConfigInvalid("CI level must be strictly between 0 and 1")
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

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
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
