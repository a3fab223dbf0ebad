package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// WorkerConfig holds configuration for background processing
type WorkerConfig struct {
	// RefreshPollInterval is how often the embedding worker drains its queue
	RefreshPollInterval time.Duration
	// RefreshBatchSize is the maximum jobs claimed per drain
	RefreshBatchSize int
	// MaintenanceInterval is how often the decay scheduler wakes up
	MaintenanceInterval time.Duration
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion        string
	DynamoDBTable    string
	LineageIndexName string // GSI1 - lineage and as-of queries
	ScopeIndexName   string // GSI2 - tenant-scoped listing
	EventBusName     string

	// Lambda configuration
	IsLambda           bool
	LambdaFunctionName string

	// Logging
	LogLevel string

	// Authentication
	JWTSecret string
	JWTIssuer string

	// Observability
	EnableMetrics   bool
	EnableTracing   bool
	EnableCORS      bool
	OTLPEndpoint    string
	TraceSampleRate float64

	// Embedding provider
	EmbeddingEndpoint string
	EmbeddingAPIKey   string
	EmbeddingModel    string

	// Dynamic tuning file, empty disables hot reload
	TuningFile string

	// Background processing configuration
	Worker WorkerConfig
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress:    getEnv("SERVER_ADDRESS", ":8080"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		AWSRegion:        getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable:    getEnv("TABLE_NAME", "engram"),
		LineageIndexName: getEnv("LINEAGE_INDEX_NAME", "LineageIndex"),
		ScopeIndexName:   getEnv("SCOPE_INDEX_NAME", "ScopeIndex"),
		EventBusName:     getEnv("EVENT_BUS_NAME", "engram-events"),

		// Lambda configuration
		IsLambda:           getEnvBool("IS_LAMBDA", false),
		LambdaFunctionName: getEnv("AWS_LAMBDA_FUNCTION_NAME", ""),

		// Authentication
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "engram-backend"),

		// Logging and observability
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		EnableMetrics:   getEnvBool("ENABLE_METRICS", true),
		EnableTracing:   getEnvBool("ENABLE_TRACING", false),
		EnableCORS:      getEnvBool("ENABLE_CORS", true),
		OTLPEndpoint:    getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TraceSampleRate: getEnvFloat("TRACE_SAMPLE_RATE", 0.1),

		// Embedding provider
		EmbeddingEndpoint: getEnv("EMBEDDING_ENDPOINT", ""),
		EmbeddingAPIKey:   getEnv("EMBEDDING_API_KEY", ""),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),

		TuningFile: getEnv("TUNING_FILE", ""),

		Worker: WorkerConfig{
			RefreshPollInterval: getEnvDuration("REFRESH_POLL_INTERVAL", 5*time.Second),
			RefreshBatchSize:    getEnvInt("REFRESH_BATCH_SIZE", 10),
			MaintenanceInterval: getEnvDuration("MAINTENANCE_INTERVAL", time.Hour),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.DynamoDBTable == "" {
			return fmt.Errorf("TABLE_NAME is required")
		}
		if c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required")
		}
		if c.EmbeddingEndpoint == "" {
			return fmt.Errorf("EMBEDDING_ENDPOINT is required in production")
		}
	}
	if c.Worker.RefreshBatchSize <= 0 {
		return fmt.Errorf("REFRESH_BATCH_SIZE must be positive")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
