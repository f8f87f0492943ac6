package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port        string
	Environment string

	// JWT
	JWTSecret string

	// Catalog API
	CatalogAPIURL        string
	CatalogTrailingSlash bool
	CatalogTimeout       time.Duration
	CatalogRateLimit     float64

	// Redis
	RedisURL         string
	CategoryCacheTTL time.Duration

	// NATS
	NATSURL string

	// Editor
	EditorSessionTTL    time.Duration
	EditorSweepInterval time.Duration
	MaxImageSizeBytes   int64

	// CORS
	CORSAllowedOrigins []string
}

func Load() *Config {
	trailingSlash, _ := strconv.ParseBool(getEnv("CATALOG_TRAILING_SLASH", "false"))
	rateLimit, _ := strconv.ParseFloat(getEnv("CATALOG_RATE_LIMIT", "20"), 64)
	maxImageSize, _ := strconv.ParseInt(getEnv("MAX_IMAGE_SIZE_BYTES", "10485760"), 10, 64)

	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// JWT - empty enables development auth outside production
		JWTSecret: getEnv("JWT_SECRET", ""),

		// Catalog API
		CatalogAPIURL:        strings.TrimSuffix(getEnv("CATALOG_API_URL", "http://localhost:8000/api"), "/"),
		CatalogTrailingSlash: trailingSlash,
		CatalogTimeout:       getDuration("CATALOG_TIMEOUT", 10*time.Second),
		CatalogRateLimit:     rateLimit,

		// Redis - category caching is off unless a TTL is set
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CategoryCacheTTL: getDuration("CATEGORY_CACHE_TTL", 0),

		// NATS - audit events are off unless a URL is set
		NATSURL: getEnv("NATS_URL", ""),

		// Editor
		EditorSessionTTL:    getDuration("EDITOR_SESSION_TTL", 30*time.Minute),
		EditorSweepInterval: getDuration("EDITOR_SWEEP_INTERVAL", time.Minute),
		MaxImageSizeBytes:   maxImageSize,

		// CORS
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate rejects configurations that are unsafe to serve with
func (c *Config) Validate() error {
	if c.IsProduction() && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	if c.CatalogAPIURL == "" {
		return errors.New("CATALOG_API_URL is required")
	}
	if c.MaxImageSizeBytes <= 0 {
		return errors.New("MAX_IMAGE_SIZE_BYTES must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// bare numbers are seconds
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
