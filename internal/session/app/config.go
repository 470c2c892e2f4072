package app

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/quorumhq/sessiond/pkg/tokenx"
)

type Config struct {
	Issuer   string // Required-ish: issuer claim for tokens (default: sessiond)
	Audience string // Required-ish: audience claim for tokens (default: rbac-admin)

	// Signing secrets, one per token kind, each >= 32 bytes. All required.
	AccessSecret  string
	RefreshSecret string
	ResetSecret   string
	VerifySecret  string

	AccessTTL  time.Duration // Access token lifetime (default: 15m)
	RefreshTTL time.Duration // Refresh token lifetime (default: 720h / 30 days)
	ResetTTL   time.Duration // Reset token lifetime (default: 30m)
	VerifyTTL  time.Duration // Verification token lifetime (default: 48h)

	ClockSkew   time.Duration // Leeway on nbf/iat, capped at 5m (default: 30s)
	BindContext bool          // Enforce IP/UA fingerprints embedded at issuance
	RotateGrace time.Duration // Duplicate-rotation grace window (default: 0, disabled)

	RedisAddr     string        // Session store address (default: localhost:6379)
	RedisPassword string        // Optional
	RedisDB       int           // Optional (default: 0)
	StoreTimeout  time.Duration // Per-call session store timeout (default: 3s)

	DatabaseFile string // Path to SQLite database file (default: ./sessiond.db)
	PepperFile   string // Path to pepper file for password hashing (default: ./pepper)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		Issuer:   getEnvOrDefault("SESSION_ISSUER", "sessiond"),
		Audience: getEnvOrDefault("SESSION_AUDIENCE", "rbac-admin"),

		AccessSecret:  os.Getenv("SESSION_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("SESSION_REFRESH_SECRET"),
		ResetSecret:   os.Getenv("SESSION_RESET_SECRET"),
		VerifySecret:  os.Getenv("SESSION_VERIFY_SECRET"),

		AccessTTL:  getEnvDurationOrDefault("SESSION_ACCESS_TTL", 15*time.Minute),
		RefreshTTL: getEnvDurationOrDefault("SESSION_REFRESH_TTL", 30*24*time.Hour),
		ResetTTL:   getEnvDurationOrDefault("SESSION_RESET_TTL", 30*time.Minute),
		VerifyTTL:  getEnvDurationOrDefault("SESSION_VERIFY_TTL", 48*time.Hour),

		ClockSkew:   getEnvDurationOrDefault("SESSION_CLOCK_SKEW", 30*time.Second),
		BindContext: getEnvBoolOrDefault("SESSION_BIND_CONTEXT", false),
		RotateGrace: getEnvDurationOrDefault("SESSION_ROTATE_GRACE", 0),

		RedisAddr:     getEnvOrDefault("SESSION_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("SESSION_REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("SESSION_REDIS_DB", 0),
		StoreTimeout:  getEnvDurationOrDefault("SESSION_STORE_TIMEOUT", 3*time.Second),

		DatabaseFile: getEnvOrDefault("SESSION_DATABASE_FILE", "sessiond.db"),
		PepperFile:   getEnvOrDefault("SESSION_PEPPER_FILE", "pepper"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// Secrets assembles and validates the per-kind signing secrets.
func (c Config) Secrets() (tokenx.Secrets, error) {
	s := tokenx.Secrets{
		Access:  []byte(c.AccessSecret),
		Refresh: []byte(c.RefreshSecret),
		Reset:   []byte(c.ResetSecret),
		Verify:  []byte(c.VerifySecret),
	}
	if err := s.Validate(); err != nil {
		return tokenx.Secrets{}, fmt.Errorf("config: %w", err)
	}
	return s, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are taken as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
