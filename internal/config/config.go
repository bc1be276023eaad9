package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Port      string
	JWTSecret string
	Database  DatabaseConfig
	Ingest    IngestConfig
	Telegram  TelegramConfig
	// BaseURL is the externally visible URL, used in claim QR codes.
	BaseURL string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	// Embedded instance settings, used when Host is localhost and no
	// password is set.
	EmbeddedDataPath string
	EmbeddedPort     int
}

// IngestConfig holds check-in endpoint configuration
type IngestConfig struct {
	// AutoRegister switches the ingestion path from reject-unknown (the
	// default) to create-on-first-contact.
	AutoRegister bool
	// Timeout bounds one check-in; devices have a limited retry budget and
	// must see a clear failure rather than a hang.
	Timeout time.Duration
}

// TelegramConfig holds notification sink configuration
type TelegramConfig struct {
	// APIBase overrides the Bot API host, mainly for tests.
	APIBase string
	Timeout time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg := &Config{
		Port:      getEnv("PORT", "8000"),
		JWTSecret: jwtSecret,
		BaseURL:   getEnv("BASE_URL", "http://localhost:8000"),
		Database: DatabaseConfig{
			Host:             getEnv("PG_HOST", "localhost"),
			Port:             getEnv("PG_PORT", "5432"),
			Username:         getEnv("PG_USERNAME", "postgres"),
			Password:         os.Getenv("PG_PASSWORD"),
			Database:         getEnv("PG_DATABASE", "ecomonitor"),
			EmbeddedDataPath: getEnv("PG_EMBEDDED_DATA", "./db_data"),
			EmbeddedPort:     getEnvInt("PG_EMBEDDED_PORT", 5433),
		},
		Ingest: IngestConfig{
			AutoRegister: getEnv("INGEST_AUTO_REGISTER", "false") == "true",
			Timeout:      getEnvDuration("INGEST_TIMEOUT", 10*time.Second),
		},
		Telegram: TelegramConfig{
			APIBase: getEnv("TELEGRAM_API_BASE", "https://api.telegram.org"),
			Timeout: getEnvDuration("TELEGRAM_TIMEOUT", 10*time.Second),
		},
	}

	return cfg, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
