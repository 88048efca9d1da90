package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	HTTPTimeoutSec int

	FreshnessHours   int
	DedupTolerance   float64
	DefaultTolerance float64
	DefaultPageSize  int

	CSVAuditPath string
	ChromeBin    string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "cartas"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "cartas123"),
		PostgresDB:       getEnv("POSTGRES_DB", "cartas_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 4),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 1000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		HTTPTimeoutSec: getEnvInt("HTTP_TIMEOUT_SEC", 30),

		FreshnessHours:   getEnvInt("FRESHNESS_HOURS", 24),
		DedupTolerance:   getEnvFloat("DEDUP_TOLERANCE", 0),
		DefaultTolerance: getEnvFloat("SEARCH_TOLERANCE", 10000),
		DefaultPageSize:  getEnvInt("DEFAULT_PAGE_SIZE", 20),

		CSVAuditPath: getEnv("CSV_AUDIT_PATH", "./output/raw_cartas.csv"),
		ChromeBin:    getEnv("CHROME_BIN", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}
