package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAdminDenialDelay = 3 * time.Second
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultDevAddr          = "127.0.0.1:4000"
)

// Config holds all configuration for the application
type Config struct {
	// API Configuration
	API APIConfig

	// Guard Configuration
	Guards GuardConfig

	// Dev server Configuration
	Dev DevConfig

	// Logging Configuration
	Logging LoggingConfig
}

// APIConfig holds remote API configuration
type APIConfig struct {
	URL     string // overrides the server selected from colyze.json when set
	Timeout time.Duration
}

// GuardConfig holds route guard tuning
type GuardConfig struct {
	AdminDenialDelay time.Duration
}

// DevConfig holds configuration for the local dev API server
type DevConfig struct {
	Addr          string
	Secret        string
	Origin        string // allowed CORS origin
	Database      string // SQLite file; empty keeps data in memory
	ResetSchedule string // cron expression for reloading demo data, empty = never
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	denialDelay, err := durationEnv("COLYZE_ADMIN_DENIAL_DELAY", DefaultAdminDenialDelay)
	if err != nil {
		return nil, err
	}

	timeout, err := durationEnv("COLYZE_HTTP_TIMEOUT", DefaultHTTPTimeout)
	if err != nil {
		return nil, err
	}

	return &Config{
		API: APIConfig{
			URL:     os.Getenv("COLYZE_API_URL"),
			Timeout: timeout,
		},
		Guards: GuardConfig{
			AdminDenialDelay: denialDelay,
		},
		Dev: DevConfig{
			Addr:          stringEnv("COLYZE_DEV_ADDR", DefaultDevAddr),
			Secret:        os.Getenv("COLYZE_DEV_SECRET"),
			Origin:        stringEnv("COLYZE_DEV_ORIGIN", "http://localhost:3000"),
			Database:      os.Getenv("COLYZE_DEV_DATABASE"),
			ResetSchedule: os.Getenv("COLYZE_DEV_RESET_SCHEDULE"),
		},
		Logging: LoggingConfig{
			Level:  stringEnv("LOG_LEVEL", "warn"),
			Format: stringEnv("LOG_FORMAT", "console"),
		},
	}, nil
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, raw)
	}
	return d, nil
}
