package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries runtime settings for the workspace API. Everything
// comes from the environment, matching how the service is deployed.
type Config struct {
	// Server
	Addr string

	// Database
	DatabaseURL string

	// Auth provider read model
	AuthBaseURL string

	// Cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Resolution policy: when true, organization-branch failures are
	// errors instead of a silent personal-workspace fallback.
	StrictResolution bool

	// Rate limiting
	RateBurst  int
	RatePerSec int
}

// Load reads configuration from the environment with development
// defaults.
func Load() *Config {
	return &Config{
		Addr:             getEnv("TRUSS_ADDR", ":8080"),
		DatabaseURL:      getEnv("TRUSS_PG_DSN", ""),
		AuthBaseURL:      getEnv("TRUSS_AUTH_BASE_URL", "http://localhost:3000/api/auth"),
		RedisAddr:        getEnv("TRUSS_REDIS_ADDR", ""),
		RedisPassword:    getEnv("TRUSS_REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("TRUSS_REDIS_DB", 0),
		CacheTTL:         getEnvDuration("TRUSS_CACHE_TTL", time.Minute),
		StrictResolution: getEnvBool("TRUSS_STRICT_RESOLUTION", false),
		RateBurst:        getEnvInt("TRUSS_RATE_BURST", 20),
		RatePerSec:       getEnvInt("TRUSS_RATE_PER_SEC", 10),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
