package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Collection
	Sources           []string // whitelist of source names; nil means all
	MaxPages          int
	AgencyConcurrency int
	IncludeFacebook   bool
	GlobalTimeoutSec  int
	Headless          bool
	ChromeBin         string
	AgencySourcesFile string

	// Scoring
	DealThresholdPct       float64
	OverpricedThresholdPct float64

	// Output
	OutputDir string
	LogFile   string
	Debug     bool

	// Postgres (optional sink)
	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// API
	APIAddr string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		Sources:           getEnvList("SOURCES"),
		MaxPages:          getEnvInt("MAX_PAGES", 5),
		AgencyConcurrency: getEnvInt("AGENCY_CONCURRENCY", 3),
		IncludeFacebook:   getEnvBool("INCLUDE_FACEBOOK", false),
		GlobalTimeoutSec:  getEnvInt("GLOBAL_TIMEOUT_SEC", 0),
		Headless:          getEnvBool("HEADLESS", true),
		ChromeBin:         getEnv("CHROME_BIN", ""),
		AgencySourcesFile: getEnv("AGENCY_SOURCES_FILE", ""),

		DealThresholdPct:       getEnvFloat("DEAL_THRESHOLD_PCT", 15),
		OverpricedThresholdPct: getEnvFloat("OVERPRICED_THRESHOLD_PCT", 15),

		OutputDir: getEnv("OUTPUT_DIR", "./output"),
		LogFile:   getEnv("LOG_FILE", ""),
		Debug:     getEnvBool("DEBUG", false),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "rentals_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		APIAddr: getEnv("API_ADDR", ":8080"),
	}
}

// GlobalTimeout converts the configured run deadline to a duration. Zero
// means no deadline.
func (c *Config) GlobalTimeout() time.Duration {
	if c.GlobalTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.GlobalTimeoutSec) * time.Second
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

// WantsSource reports whether the given source name passes the whitelist.
// An empty whitelist admits every source.
func (c *Config) WantsSource(name string) bool {
	if len(c.Sources) == 0 {
		return true
	}
	for _, s := range c.Sources {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
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

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
