package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/service"
)

type Config struct {
	Issuer string // Required: issuer label baked into provisioning URIs

	StoreDriver  string // Optional: storage driver (sqlite, postgres) (default: sqlite)
	DatabaseFile string // Optional: path to SQLite database file (default: ./mfagate.db)
	DatabaseURL  string // Required for postgres: connection string

	RedisAddr string // Optional: Redis address for the session read cache
	AMQPURL   string // Optional: AMQP broker URL for audit event publishing

	AllowlistFile string // Optional: path to the emergency bypass allowlist (default: ./allowlist.toml)
	MasterKeyPath string // Optional: path to master encryption key file

	LockoutThreshold int           // Optional: consecutive failures before lockout (default: 3)
	LockoutDuration  time.Duration // Optional: lockout window (default: 15m)
	SessionTTL       time.Duration // Optional: per-device session lifetime (default: 8h)
	BypassMaxTTL     time.Duration // Optional: bypass grant cap (default: 24h)

	Mandatory        bool     // Optional: whether MFA is mandatory (default: true)
	ExemptPrincipals []string // Optional: principals exempt from mandatory MFA

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:       getEnvOrDefault("MFA_ISSUER", "mfagate"),
		StoreDriver:  getEnvOrDefault("MFA_STORE_DRIVER", "sqlite"),
		DatabaseFile: getEnvOrDefault("DATABASE_FILE", "mfagate.db"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		AMQPURL:   os.Getenv("AMQP_URL"),

		AllowlistFile: getEnvOrDefault("ALLOWLIST_FILE", "allowlist.toml"),
		MasterKeyPath: os.Getenv("MFA_MASTER_KEY_PATH"),

		LockoutThreshold: getEnvIntOrDefault("MFA_LOCKOUT_THRESHOLD", service.DefaultLockoutThreshold),
		LockoutDuration:  getEnvDurationOrDefault("MFA_LOCKOUT_DURATION", service.DefaultLockoutDuration),
		SessionTTL:       getEnvDurationOrDefault("MFA_SESSION_TTL", service.DefaultSessionTTL),
		BypassMaxTTL:     getEnvDurationOrDefault("MFA_BYPASS_MAX_TTL", service.DefaultBypassMaxTTL),

		Mandatory: getEnvBoolOrDefault("MFA_MANDATORY", true),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	if exempt := os.Getenv("MFA_EXEMPT_PRINCIPALS"); exempt != "" {
		for _, p := range strings.Split(exempt, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.ExemptPrincipals = append(cfg.ExemptPrincipals, p)
			}
		}
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
