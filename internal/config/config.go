// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/ingest.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is populated from environment variables.
type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Cache
	CacheEnabled bool

	// TaskAPIToken, when set, is required as a bearer token on the
	// mutating endpoints the task queue and cron call.
	TaskAPIToken string

	// Collection
	ClubName                string
	ScrapeFeedURL           string
	ScrapeRequestsPerMinute int
	CollectInterval         time.Duration // 0 disables the in-process ticker

	// Notifications
	WebhookURLs              []string
	WebhookRequestsPerMinute int
	DispatchInterval         time.Duration
	NotificationRetention    time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  envDuration("DB_POOL_MAX_LIFE_MINUTES", 30, time.Minute),

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   envDuration("RATE_LIMIT_WINDOW", 60, time.Second),

		CacheEnabled: envBool("CACHE_ENABLED", true),
		TaskAPIToken: envOr("TASK_API_TOKEN", ""),

		ClubName:                envOr("CLUB_NAME", "鹿島アントラーズ"),
		ScrapeFeedURL:           envOr("SCRAPE_FEED_URL", ""),
		ScrapeRequestsPerMinute: envInt("SCRAPE_REQUESTS_PER_MINUTE", 6),
		CollectInterval:         envDuration("COLLECT_INTERVAL_MINUTES", 0, time.Minute),

		WebhookURLs:              envList("WEBHOOK_URLS", nil),
		WebhookRequestsPerMinute: envInt("WEBHOOK_REQUESTS_PER_MINUTE", 30),
		DispatchInterval:         envDuration("DISPATCH_INTERVAL_SECONDS", 30, time.Second),
		NotificationRetention:    envDuration("NOTIFICATION_RETENTION_DAYS", 90, 24*time.Hour),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration reads an integer count of unit.
func envDuration(key string, fallback int, unit time.Duration) time.Duration {
	return time.Duration(envInt(key, fallback)) * unit
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
