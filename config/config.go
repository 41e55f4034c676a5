package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	APIBaseURL              string
	APIToken                string
	ServerPort              string
	DatabaseURL             string
	LogLevel                string
	LogFormat               string
	CacheTTLMinutes         string
	RequestTimeoutSeconds   string
	MaxRetryAttempts        string
	MinRequestIntervalMs    string
	DraftTTLHours           string
	RegistrarRefreshMinutes string
	ScraperSyncHours        string
}

// GetCacheTTL returns the cache TTL from environment or default
func (c *Config) GetCacheTTL() time.Duration {
	return parseDuration("CACHE_TTL_MINUTES", c.CacheTTLMinutes, time.Minute, 5*time.Minute)
}

// GetRequestTimeout returns the per-request timeout for backend calls
func (c *Config) GetRequestTimeout() time.Duration {
	return parseDuration("REQUEST_TIMEOUT_SECONDS", c.RequestTimeoutSeconds, time.Second, 30*time.Second)
}

// GetMinRequestInterval returns the minimum spacing between backend requests, 0 disables it
func (c *Config) GetMinRequestInterval() time.Duration {
	if strings.TrimSpace(c.MinRequestIntervalMs) == "0" {
		return 0
	}
	return parseDuration("MIN_REQUEST_INTERVAL_MS", c.MinRequestIntervalMs, time.Millisecond, 0)
}

// GetDraftTTL returns how long a failed submission is kept for retry
func (c *Config) GetDraftTTL() time.Duration {
	return parseDuration("DRAFT_TTL_HOURS", c.DraftTTLHours, time.Hour, 72*time.Hour)
}

// GetRegistrarRefreshInterval returns the registrar directory refresh period
func (c *Config) GetRegistrarRefreshInterval() time.Duration {
	return parseDuration("REGISTRAR_REFRESH_MINUTES", c.RegistrarRefreshMinutes, time.Minute, 15*time.Minute)
}

// GetScraperSyncInterval returns the period of the scheduled backend scrape, 0 when it is off
func (c *Config) GetScraperSyncInterval() time.Duration {
	if strings.TrimSpace(c.ScraperSyncHours) == "0" {
		return 0
	}
	return parseDuration("SCRAPER_SYNC_HOURS", c.ScraperSyncHours, time.Hour, 0)
}

// GetMaxRetryAttempts returns how many times an idempotent read is retried
func (c *Config) GetMaxRetryAttempts() int {
	if c.MaxRetryAttempts == "" {
		return 2
	}
	attempts, err := strconv.Atoi(c.MaxRetryAttempts)
	if err != nil || attempts < 0 {
		logrus.Warnf("Invalid MAX_RETRY_ATTEMPTS value: %s, using default 2", c.MaxRetryAttempts)
		return 2
	}
	return attempts
}

// HasDatabase reports whether drafts are persisted in Postgres
func (c *Config) HasDatabase() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

// Unified maps the environment onto the grouped runtime configuration
func (c *Config) Unified() *shared.UnifiedConfiguration {
	unified := shared.NewDefaultUnifiedConfiguration()
	unified.Service.BaseURL = c.APIBaseURL
	unified.Service.APIToken = c.APIToken
	unified.Service.HTTPRequestTimeout = c.GetRequestTimeout()
	unified.Service.RequestRateLimit = c.GetMinRequestInterval()
	unified.Service.MaxRetryAttempts = c.GetMaxRetryAttempts()
	unified.Database.URL = c.DatabaseURL
	unified.Cache.DefaultTTL = c.GetCacheTTL()
	unified.Cache.RegistrarRefreshPeriod = c.GetRegistrarRefreshInterval()
	unified.Drafts.TTL = c.GetDraftTTL()
	unified.Logging.Level = c.LogLevel
	unified.Logging.Format = c.LogFormat
	unified.ValidateAndApplyDefaults()
	return unified
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	return &Config{
		APIBaseURL:              strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:4000"), "/"),
		APIToken:                getEnv("API_TOKEN", ""),
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               getEnv("LOG_FORMAT", "json"),
		CacheTTLMinutes:         getEnv("CACHE_TTL_MINUTES", "5"),
		RequestTimeoutSeconds:   getEnv("REQUEST_TIMEOUT_SECONDS", "30"),
		MaxRetryAttempts:        getEnv("MAX_RETRY_ATTEMPTS", "2"),
		MinRequestIntervalMs:    getEnv("MIN_REQUEST_INTERVAL_MS", "0"),
		DraftTTLHours:           getEnv("DRAFT_TTL_HOURS", "72"),
		RegistrarRefreshMinutes: getEnv("REGISTRAR_REFRESH_MINUTES", "15"),
		ScraperSyncHours:        getEnv("SCRAPER_SYNC_HOURS", "0"),
	}
}

func parseDuration(key, raw string, unit, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		logrus.Warnf("Invalid %s value: %s, using default %s", key, raw, fallback)
		return fallback
	}

	return time.Duration(value) * unit
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
