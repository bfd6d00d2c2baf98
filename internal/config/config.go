package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"flowdash/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Upload    UploadConfig
	Session   SessionConfig
	Sankey    SankeyConfig
	Profiling ProfilingConfig
	LogLevel  string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
	// Demo preloads the sample energy table into every new session
	Demo bool
}

// DatabaseConfig holds the optional upload history database. An empty URL
// disables the history.
type DatabaseConfig struct {
	URL string
}

// Enabled reports whether a database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// UploadConfig holds upload limits and preview settings
type UploadConfig struct {
	MaxSizeMB  int
	SampleRows int
}

// MaxBytes returns the upload cap in bytes
func (u UploadConfig) MaxBytes() int64 {
	return int64(u.MaxSizeMB) * 1024 * 1024
}

// SessionConfig holds session lifecycle settings
type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// SankeyConfig holds diagram defaults
type SankeyConfig struct {
	DefaultRenderer string
	Unit            string
	UnitDivisor     float64
	DayFirst        bool
	FilterColumns   []string
}

// ProfilingConfig holds performance profiling settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
			Demo:    getEnvBoolOrDefault("DEMO_MODE", false),
		},
		Database: DatabaseConfig{
			URL: getEnvOrDefault("DATABASE_URL", ""),
		},
		Upload: UploadConfig{
			MaxSizeMB:  getEnvIntOrDefault("MAX_UPLOAD_MB", 50),
			SampleRows: getEnvIntOrDefault("SAMPLE_ROWS", 500),
		},
		Session: SessionConfig{
			TTL:           getEnvDurationOrDefault("SESSION_TTL", 2*time.Hour),
			SweepInterval: getEnvDurationOrDefault("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		},
		Sankey: SankeyConfig{
			DefaultRenderer: getEnvOrDefault("DEFAULT_RENDERER", "d3"),
			Unit:            getEnvOrDefault("SANKEY_UNIT", "MT"),
			UnitDivisor:     getEnvFloatOrDefault("SANKEY_UNIT_DIVISOR", 100000),
			DayFirst:        getEnvBoolOrDefault("DATE_DAY_FIRST", false),
			FilterColumns:   getEnvListOrDefault("FILTER_COLUMNS", []string{"Plant", "Material"}),
		},
		Profiling: ProfilingConfig{
			Port:    getEnvOrDefault("PPROF_PORT", "6060"),
			Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	if config.Upload.MaxSizeMB <= 0 {
		return errors.ConfigInvalid("MAX_UPLOAD_MB must be positive")
	}
	if config.Upload.SampleRows <= 0 {
		return errors.ConfigInvalid("SAMPLE_ROWS must be positive")
	}
	if config.Session.TTL <= 0 {
		return errors.ConfigInvalid("SESSION_TTL must be positive")
	}
	if config.Sankey.UnitDivisor <= 0 {
		return errors.ConfigInvalid("SANKEY_UNIT_DIVISOR must be positive")
	}
	switch config.Sankey.DefaultRenderer {
	case "d3", "echarts":
	default:
		return errors.ConfigInvalid("DEFAULT_RENDERER must be d3 or echarts")
	}
	if len(config.Sankey.FilterColumns) != 2 {
		return errors.ConfigInvalid("FILTER_COLUMNS must name exactly two columns")
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

// getEnvListOrDefault splits a comma separated value, dropping blanks
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
