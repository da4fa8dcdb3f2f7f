package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	JWTSecret       string
	SkipAuth        bool
	Environment     string
	UpstreamURL     string // Base URL of the report compute backend
	UpstreamToken   string // Service credential used for upstream calls
	UpstreamTimeout time.Duration
	RefreshSchedule string // Cron spec for periodic collection reloads
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	timeout, err := time.ParseDuration(getEnv("UPSTREAM_TIMEOUT", "30s"))
	if err != nil {
		timeout = 30 * time.Second
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		JWTSecret:       getEnv("JWT_SECRET", "secret"),
		SkipAuth:        getEnv("SKIP_AUTH", "false") == "true",
		Environment:     getEnv("ENVIRONMENT", "development"),
		UpstreamURL:     getEnv("UPSTREAM_URL", "http://localhost:9000"),
		UpstreamToken:   getEnv("UPSTREAM_TOKEN", ""),
		UpstreamTimeout: timeout,
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "@every 5m"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
