package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Search   SearchConfig
	Scrape   ScrapeConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SearchConfig struct {
	Host   string
	APIKey string
	Index  string
}

type ScrapeConfig struct {
	// CronSpec schedules the daily full-catalog run.
	CronSpec      string
	PageDelay     time.Duration
	InsertDelay   time.Duration
	VendorTimeout time.Duration
	LockTTL       time.Duration
	HTTPTimeout   time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "vendord"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: getIntOrDefault("DB_MAX_CONNS", 10),
			MinConns: getIntOrDefault("DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Search: SearchConfig{
			Host:   getEnvOrDefault("MEILISEARCH_HOST", "http://localhost:7700"),
			APIKey: getEnvOrDefault("MEILISEARCH_API_KEY", ""),
			Index:  getEnvOrDefault("MEILISEARCH_INDEX", "products"),
		},
		Scrape: ScrapeConfig{
			CronSpec:      getEnvOrDefault("SCRAPE_CRON", "0 0 * * *"),
			PageDelay:     getDurationOrDefault("SCRAPE_PAGE_DELAY", 100*time.Millisecond),
			InsertDelay:   getDurationOrDefault("SCRAPE_INSERT_DELAY", 10*time.Millisecond),
			VendorTimeout: getDurationOrDefault("SCRAPE_VENDOR_TIMEOUT", 30*time.Minute),
			LockTTL:       getDurationOrDefault("SCRAPE_LOCK_TTL", 2*time.Hour),
			HTTPTimeout:   getDurationOrDefault("SCRAPE_HTTP_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Search.Host == "" {
		return fmt.Errorf("MEILISEARCH_HOST must be set")
	}

	if c.Search.Index == "" {
		return fmt.Errorf("MEILISEARCH_INDEX must not be empty")
	}

	if c.Scrape.LockTTL < c.Scrape.VendorTimeout {
		return fmt.Errorf("SCRAPE_LOCK_TTL must not be shorter than SCRAPE_VENDOR_TIMEOUT")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("DB_MAX_CONNS cannot be smaller than DB_MIN_CONNS")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
