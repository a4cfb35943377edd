// Package config loads all crewdesk configuration from CREWDESK_* environment
// variables and validates it before anything starts.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/crewdesk/crewdesk/pkg/identity"
	"github.com/crewdesk/crewdesk/pkg/objects"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Objects       objects.Config
	OIDC          identity.OIDCConfig
	Cache         CacheConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// RedisConfig holds the optional shared role cache settings
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// Enabled reports whether a Redis endpoint is configured
func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

// CacheConfig holds role resolver cache settings
type CacheConfig struct {
	RoleTTL time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       slog.Level
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("CREWDESK_HOST", "0.0.0.0"),
			Port:            getEnv("CREWDESK_PORT", "8080"),
			ReadTimeout:     getEnvDuration("CREWDESK_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("CREWDESK_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("CREWDESK_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CREWDESK_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("CREWDESK_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("CREWDESK_POSTGRES_URL", ""),
			MaxConns: getEnvInt("CREWDESK_POSTGRES_MAX_CONNS", 25),
			MinConns: getEnvInt("CREWDESK_POSTGRES_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			URL:      getEnv("CREWDESK_REDIS_URL", ""),
			Password: getEnv("CREWDESK_REDIS_PASSWORD", ""),
			DB:       getEnvInt("CREWDESK_REDIS_DB", 0),
		},
		Objects: objects.Config{
			Backend:        getEnv("CREWDESK_OBJECTS_BACKEND", "filesystem"),
			RootDir:        getEnv("CREWDESK_OBJECTS_ROOT", "/var/lib/crewdesk/objects"),
			S3Bucket:       getEnv("CREWDESK_S3_BUCKET", ""),
			S3Region:       getEnv("CREWDESK_S3_REGION", "us-east-1"),
			S3Endpoint:     getEnv("CREWDESK_S3_ENDPOINT", ""),
			S3AccessKey:    getEnv("CREWDESK_S3_ACCESS_KEY", ""),
			S3SecretKey:    getEnv("CREWDESK_S3_SECRET_KEY", ""),
			S3UsePathStyle: getEnvBool("CREWDESK_S3_USE_PATH_STYLE", false),
		},
		OIDC: identity.OIDCConfig{
			IssuerURL:    getEnv("CREWDESK_OIDC_ISSUER_URL", ""),
			ClientID:     getEnv("CREWDESK_OIDC_CLIENT_ID", ""),
			ClientSecret: getEnv("CREWDESK_OIDC_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("CREWDESK_OIDC_REDIRECT_URL", ""),
			Scopes:       getEnvList("CREWDESK_OIDC_SCOPES", []string{"openid", "profile", "email"}),
		},
		Cache: CacheConfig{
			RoleTTL: getEnvDuration("CREWDESK_ROLE_CACHE_TTL", 30*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:           parseLogLevel(getEnv("CREWDESK_LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("CREWDESK_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("CREWDESK_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("CREWDESK_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("CREWDESK_OTEL_SERVICE_NAME", "crewdesk"),
			OTelServiceVersion: getEnv("CREWDESK_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("CREWDESK_OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// OIDCEnabled reports whether external login is configured
func (c *Config) OIDCEnabled() bool {
	return c.OIDC.IssuerURL != ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	switch c.Objects.Backend {
	case "filesystem":
		if c.Objects.RootDir == "" {
			return fmt.Errorf("objects root is required for filesystem storage")
		}
	case "s3":
		if c.Objects.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("invalid objects backend: %s (must be filesystem or s3)", c.Objects.Backend)
	}

	if c.OIDCEnabled() {
		if err := c.OIDC.Validate(); err != nil {
			return fmt.Errorf("OIDC configuration: %w", err)
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
