// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	App       AppConfig
	Signing   SigningConfig
	Redis     RedisConfig
	Numbering NumberingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds connection settings. Driver is "postgres" or "sqlite".
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
	MaxOpen    int
	Debug      bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev           bool
	Migrations    bool
	SessionSecret string
}

// SigningConfig selects and configures the e-signature provider.
type SigningConfig struct {
	Provider      string
	BaseURL       string
	AuthURL       string
	ClientID      string
	ClientSecret  string
	AccountID     string
	WebhookSecret string
	// Topology overrides the provider's default when set.
	Topology   string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// RedisConfig points at the shared token cache. An empty URL keeps tokens
// in process memory.
type RedisConfig struct {
	URL string
}

type NumberingConfig struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "contracts"),
			Password:   getEnv("DB_PASSWORD", "contracts123"),
			DBName:     getEnv("DB_NAME", "contracts"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("DB_SQLITE_PATH", "contracts.db"),
			MaxOpen:    getEnvInt("DB_MAX_OPEN_CONNS", 20),
			Debug:      getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Dev:           getEnvBool("DEV", true),
			Migrations:    getEnvBool("MIGRATIONS", false),
			SessionSecret: getEnv("SESSION_SECRET", "devsessionsecret"),
		},
		Signing: SigningConfig{
			Provider:      getEnv("SIGNING_PROVIDER", "signwell"),
			BaseURL:       getEnv("SIGNING_BASE_URL", "https://www.signwell.com"),
			AuthURL:       getEnv("SIGNING_AUTH_URL", ""),
			ClientID:      getEnv("SIGNING_CLIENT_ID", ""),
			ClientSecret:  getEnv("SIGNING_CLIENT_SECRET", ""),
			AccountID:     getEnv("SIGNING_ACCOUNT_ID", ""),
			WebhookSecret: getEnv("SIGNING_WEBHOOK_SECRET", ""),
			Topology:      getEnv("SIGNING_TOPOLOGY", ""),
			Timeout:       getEnvDuration("SIGNING_TIMEOUT", 10*time.Second),
			MaxRetries:    getEnvInt("SIGNING_MAX_RETRIES", 2),
			Backoff:       getEnvDuration("SIGNING_BACKOFF", 200*time.Millisecond),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Numbering: NumberingConfig{
			MaxAttempts: getEnvInt("NUMBERING_MAX_ATTEMPTS", 5),
			Backoff:     getEnvDuration("NUMBERING_BACKOFF", 20*time.Millisecond),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

// getEnvDuration parses values like "5s" or "250ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
