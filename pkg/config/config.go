package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Typesense     TypesenseConfig
	Inference     InferenceConfig
	Storage       StorageConfig
	Analysis      AnalysisConfig
	Notifications NotificationsConfig
	OTEL          OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// InferenceConfig holds inference worker configuration
type InferenceConfig struct {
	Provider    string // "script" or "mock"
	Interpreter string
	ImageScript string
	SoilScript  string
	Timeout     time.Duration
	Concurrency int
}

// StorageConfig holds object store configuration
type StorageConfig struct {
	BaseURL    string
	Bucket     string
	ServiceKey string
	LocalRoot  string
}

// AnalysisConfig holds batch analysis tunables
type AnalysisConfig struct {
	UnprocessedLimit int
	ReadinessTimeout time.Duration
	StartupTimeout   time.Duration
}

// NotificationsConfig holds webhook notification configuration
type NotificationsConfig struct {
	WebhookURL string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "cropsight"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		Inference: InferenceConfig{
			Provider:    getEnv("INFERENCE_PROVIDER", "script"),
			Interpreter: getEnv("INFERENCE_INTERPRETER", "python3"),
			ImageScript: getEnv("INFERENCE_IMAGE_SCRIPT", "/opt/cropsight/workers/tomato_prediction.py"),
			SoilScript:  getEnv("INFERENCE_SOIL_SCRIPT", "/opt/cropsight/workers/soil_prediction.py"),
			Timeout:     getEnvAsDuration("INFERENCE_TIMEOUT", 60*time.Second),
			Concurrency: getEnvAsInt("INFERENCE_CONCURRENCY", 8),
		},
		Storage: StorageConfig{
			BaseURL:    getEnv("STORAGE_BASE_URL", ""),
			Bucket:     getEnv("STORAGE_BUCKET", "plant-images"),
			ServiceKey: getEnv("STORAGE_SERVICE_KEY", ""),
			LocalRoot:  getEnv("STORAGE_LOCAL_ROOT", "./data/images"),
		},
		Analysis: AnalysisConfig{
			UnprocessedLimit: getEnvAsInt("ANALYSIS_UNPROCESSED_LIMIT", 10),
			ReadinessTimeout: getEnvAsDuration("ANALYSIS_READINESS_TIMEOUT", 10*time.Second),
			StartupTimeout:   getEnvAsDuration("ANALYSIS_STARTUP_TIMEOUT", 30*time.Second),
		},
		Notifications: NotificationsConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "cropsight"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
