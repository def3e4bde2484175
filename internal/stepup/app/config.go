package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer string // Required: issuer claim for session tokens

	ProviderMode    string        // Optional: "remote" or "memory" (default: remote; memory is dev-only)
	ProviderURL     string        // Required in remote mode: base URL of the MFA provider API
	CustomerKey     string        // Required: provider customer key
	APIKey          string        // Required: provider API key (request signing)
	ProviderTimeout time.Duration // Optional: provider HTTP timeout (default: 30s)
	InsecureSkipTLS bool          // Optional: skip provider TLS verification (default: false, leave it alone)

	DatabaseFile   string        // Optional: path to SQLite database file (default: ./stepauth.db)
	SignerSeedFile string        // Optional: path to 32-byte Ed25519 seed; ephemeral key when unset
	LoginTTL       time.Duration // Optional: in-flight login lifetime (default: 5m)
	SessionTTL     time.Duration // Optional: issued session token lifetime (default: 12h)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer: getEnvOrDefault("STEPAUTH_ISSUER", "stepauth"),

		ProviderMode:    getEnvOrDefault("STEPAUTH_PROVIDER_MODE", "remote"),
		ProviderURL:     os.Getenv("STEPAUTH_PROVIDER_URL"),
		CustomerKey:     os.Getenv("STEPAUTH_CUSTOMER_KEY"),
		APIKey:          os.Getenv("STEPAUTH_API_KEY"),
		ProviderTimeout: getEnvDurationOrDefault("STEPAUTH_PROVIDER_TIMEOUT", 30*time.Second),
		InsecureSkipTLS: getEnvBoolOrDefault("STEPAUTH_INSECURE_SKIP_TLS", false),

		DatabaseFile:   getEnvOrDefault("STEPAUTH_DATABASE_FILE", "stepauth.db"),
		SignerSeedFile: os.Getenv("STEPAUTH_SIGNER_SEED_FILE"),
		LoginTTL:       getEnvDurationOrDefault("STEPAUTH_LOGIN_TTL", 5*time.Minute),
		SessionTTL:     getEnvDurationOrDefault("STEPAUTH_SESSION_TTL", 12*time.Hour),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	return cfg
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

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
