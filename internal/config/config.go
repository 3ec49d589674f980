package config

import (
	"net/url"
	"os"
	"strconv"
	"time"

	"obsnote/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Search     SearchConfig
	LogPattern LogPatternConfig
	Agent      AgentConfig
	Analysis   AnalysisConfig
	Logging    LoggingConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// DatabaseConfig selects the store for persisted paragraph outputs
type DatabaseConfig struct {
	Driver string
	URL    string
}

// SearchConfig points at the search backend holding the indexed documents
type SearchConfig struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
	// FieldCacheTTL bounds how long an index mapping is reused
	FieldCacheTTL time.Duration
}

// LogPatternConfig points at the server-side log pattern analysis
type LogPatternConfig struct {
	URL     string
	Timeout time.Duration
}

// AgentConfig holds ML-agent memory polling settings
type AgentConfig struct {
	URL            string
	PollInterval   time.Duration
	TraceRetention time.Duration
}

// AnalysisConfig tunes the bubble-up pipeline
type AnalysisConfig struct {
	SampleSize   int
	MaxResults   int
	GroupCount   int
	FieldWorkers int
}

// LoggingConfig selects log level and output format
type LoggingConfig struct {
	Level  string
	Format string
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	dbConfig, err := loadDatabaseConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load database configuration")
	}
	config.Database = *dbConfig

	config.Server = *loadServerConfig()
	config.Search = *loadSearchConfig()
	config.LogPattern = *loadLogPatternConfig()
	config.Agent = *loadAgentConfig()
	config.Analysis = *loadAnalysisConfig()
	config.Logging = *loadLoggingConfig()

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() (*DatabaseConfig, error) {
	driver := getEnvOrDefault("DATABASE_DRIVER", DriverPostgres)
	dbURL := os.Getenv("DATABASE_URL")

	switch driver {
	case DriverPostgres:
		if dbURL == "" {
			return nil, errors.ConfigInvalid("DATABASE_URL is required for the postgres driver")
		}
	case DriverSQLite:
		if dbURL == "" {
			dbURL = "obsnote.db"
		}
	default:
		return nil, errors.ConfigInvalid("DATABASE_DRIVER must be postgres or sqlite3, got " + driver)
	}

	return &DatabaseConfig{Driver: driver, URL: dbURL}, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "debug"),
	}
}

func loadSearchConfig() *SearchConfig {
	return &SearchConfig{
		URL:           getEnvOrDefault("SEARCH_URL", "http://localhost:9200"),
		Username:      getEnvOrDefault("SEARCH_USERNAME", ""),
		Password:      getEnvOrDefault("SEARCH_PASSWORD", ""),
		Timeout:       getEnvDurationOrDefault("SEARCH_TIMEOUT", 30*time.Second),
		FieldCacheTTL: getEnvDurationOrDefault("FIELD_CACHE_TTL", 5*time.Minute),
	}
}

func loadLogPatternConfig() *LogPatternConfig {
	return &LogPatternConfig{
		URL:     getEnvOrDefault("LOG_PATTERN_URL", "http://localhost:8000"),
		Timeout: getEnvDurationOrDefault("LOG_PATTERN_TIMEOUT", 2*time.Minute),
	}
}

func loadAgentConfig() *AgentConfig {
	return &AgentConfig{
		URL:            getEnvOrDefault("ML_AGENT_URL", "http://localhost:9200"),
		PollInterval:   getEnvDurationOrDefault("AGENT_POLL_INTERVAL", 2*time.Second),
		TraceRetention: getEnvDurationOrDefault("AGENT_TRACE_RETENTION", 10*time.Minute),
	}
}

func loadAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		SampleSize:   getEnvIntOrDefault("SAMPLE_SIZE", 1000),
		MaxResults:   getEnvIntOrDefault("MAX_RESULTS", 30),
		GroupCount:   getEnvIntOrDefault("GROUP_COUNT", 5),
		FieldWorkers: getEnvIntOrDefault("FIELD_WORKERS", 4),
	}
}

func loadLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "text"),
	}
}

func validateConfig(config *Config) error {
	for name, raw := range map[string]string{
		"SEARCH_URL":      config.Search.URL,
		"LOG_PATTERN_URL": config.LogPattern.URL,
		"ML_AGENT_URL":    config.Agent.URL,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return errors.ConfigInvalid(name + " must be an absolute URL")
		}
	}
	if config.Analysis.SampleSize <= 0 {
		return errors.ConfigInvalid("SAMPLE_SIZE must be positive")
	}
	if config.Analysis.GroupCount <= 0 {
		return errors.ConfigInvalid("GROUP_COUNT must be positive")
	}
	if config.Agent.PollInterval <= 0 {
		return errors.ConfigInvalid("AGENT_POLL_INTERVAL must be positive")
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
