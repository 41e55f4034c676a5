package shared

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// UnifiedConfiguration holds all configuration parameters for the entire application
type UnifiedConfiguration struct {
	Service  ServiceConfig  `json:"service"`
	Database DatabaseConfig `json:"database"`
	Cache    CacheConfig    `json:"cache"`
	Drafts   DraftConfig    `json:"drafts"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServiceConfig holds the backend API client configuration
type ServiceConfig struct {
	BaseURL            string        `json:"base_url"`
	APIToken           string        `json:"-"`
	HTTPRequestTimeout time.Duration `json:"http_timeout"`
	RequestRateLimit   time.Duration `json:"rate_limit"`
	MaxRetryAttempts   int           `json:"max_retries"`
	EnableMetrics      bool          `json:"enable_metrics"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string        `json:"-"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	PingTimeout     time.Duration `json:"ping_timeout"`
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	DefaultTTL             time.Duration `json:"default_ttl"`
	MaxSize                int           `json:"max_size"`
	RegistrarRefreshPeriod time.Duration `json:"registrar_refresh_period"`
}

// DraftConfig holds failed-submission retention
type DraftConfig struct {
	TTL time.Duration `json:"ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `json:"level"`
	Format      string `json:"format"`
	ServiceName string `json:"service_name"`
}

// NewDefaultUnifiedConfiguration returns production-ready default configuration
func NewDefaultUnifiedConfiguration() *UnifiedConfiguration {
	return &UnifiedConfiguration{
		Service: ServiceConfig{
			BaseURL:            "http://localhost:4000",
			HTTPRequestTimeout: 30 * time.Second,
			RequestRateLimit:   0,
			MaxRetryAttempts:   2,
			EnableMetrics:      true,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			PingTimeout:     5 * time.Second,
		},
		Cache: CacheConfig{
			DefaultTTL:             5 * time.Minute,
			MaxSize:                1000,
			RegistrarRefreshPeriod: 15 * time.Minute,
		},
		Drafts: DraftConfig{
			TTL: 72 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "ipo-admin",
		},
	}
}

// ValidateAndApplyDefaults validates configuration and applies defaults for invalid values
func (c *UnifiedConfiguration) ValidateAndApplyDefaults() {
	logger := logrus.WithField("component", "UnifiedConfiguration")
	defaults := NewDefaultUnifiedConfiguration()

	// Service
	c.Service.BaseURL = strings.TrimRight(c.Service.BaseURL, "/")
	if c.Service.BaseURL == "" {
		c.Service.BaseURL = defaults.Service.BaseURL
		logger.Debug("Applied default Service.BaseURL")
	}

	if c.Service.HTTPRequestTimeout <= 0 {
		c.Service.HTTPRequestTimeout = defaults.Service.HTTPRequestTimeout
		logger.Debug("Applied default Service.HTTPRequestTimeout")
	}

	// A zero rate limit is valid and means no spacing
	if c.Service.RequestRateLimit < 0 {
		c.Service.RequestRateLimit = 0
		logger.Debug("Applied default Service.RequestRateLimit")
	}

	if c.Service.MaxRetryAttempts < 0 {
		c.Service.MaxRetryAttempts = defaults.Service.MaxRetryAttempts
		logger.Debug("Applied default Service.MaxRetryAttempts")
	}

	// Database
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
		logger.Debug("Applied default Database.MaxOpenConns")
	}

	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
		logger.Debug("Applied default Database.MaxIdleConns")
	}

	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = defaults.Database.ConnMaxLifetime
		logger.Debug("Applied default Database.ConnMaxLifetime")
	}

	if c.Database.PingTimeout <= 0 {
		c.Database.PingTimeout = defaults.Database.PingTimeout
		logger.Debug("Applied default Database.PingTimeout")
	}

	// Cache
	if c.Cache.DefaultTTL <= 0 {
		c.Cache.DefaultTTL = defaults.Cache.DefaultTTL
		logger.Debug("Applied default Cache.DefaultTTL")
	}

	if c.Cache.MaxSize <= 0 {
		c.Cache.MaxSize = defaults.Cache.MaxSize
		logger.Debug("Applied default Cache.MaxSize")
	}

	if c.Cache.RegistrarRefreshPeriod <= 0 {
		c.Cache.RegistrarRefreshPeriod = defaults.Cache.RegistrarRefreshPeriod
		logger.Debug("Applied default Cache.RegistrarRefreshPeriod")
	}

	if c.Drafts.TTL <= 0 {
		c.Drafts.TTL = defaults.Drafts.TTL
		logger.Debug("Applied default Drafts.TTL")
	}

	// Logging
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
		logger.Debug("Applied default Logging.Level")
	}

	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
		logger.Debug("Applied default Logging.Format")
	}

	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = defaults.Logging.ServiceName
		logger.Debug("Applied default Logging.ServiceName")
	}
}

// ConfigureLogging applies the logging section to the global logrus logger
func (c *UnifiedConfiguration) ConfigureLogging() {
	logrus.SetOutput(os.Stdout)

	if strings.EqualFold(c.Logging.Format, "text") {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		logrus.Warnf("Invalid LOG_LEVEL value: %s, using info", c.Logging.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// ToJSON serializes the configuration to JSON
func (c *UnifiedConfiguration) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
