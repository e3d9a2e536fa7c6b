package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zatekoja/provider-directory/pkg/retry"
)

// Config holds all application configuration
type Config struct {
	Env       string          `yaml:"env"`
	LogLevel  string          `yaml:"log_level"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	OTEL      OTELConfig      `yaml:"otel"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Rating    RatingConfig    `yaml:"rating"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds database configuration. Driver "memory" keeps all
// data in process and ignores the connection settings.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds Redis configuration. An empty Host disables Redis.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Endpoint       string `yaml:"endpoint"`
	Enabled        bool   `yaml:"enabled"`
}

// DiscoveryConfig holds search and listing defaults
type DiscoveryConfig struct {
	DefaultPageSize  int           `yaml:"default_page_size"`
	MaxPageSize      int           `yaml:"max_page_size"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	FacetCacheTTL    time.Duration `yaml:"facet_cache_ttl"`
	Categories       []string      `yaml:"categories"`
}

// RatingConfig holds rating aggregation settings
type RatingConfig struct {
	// LockBackend is "local" or "redis"
	LockBackend       string        `yaml:"lock_backend"`
	LockTTL           time.Duration `yaml:"lock_ttl"`
	AtomicSQL         bool          `yaml:"atomic_sql"`
	WriteAttempts     int           `yaml:"write_attempts"`
	ReconcileSchedule string        `yaml:"reconcile_schedule"`
	ReconcileBatch    int           `yaml:"reconcile_batch"`
}

// DefaultCategories is the category catalog used when none is configured
var DefaultCategories = []string{
	"beauty",
	"childcare",
	"cleaning",
	"eldercare",
	"fitness",
	"handyman",
	"pet_care",
	"photography",
	"tutoring",
	"other",
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		Env:      "production",
		LogLevel: "info",
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Database:        "provider_directory",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		OTEL: OTELConfig{
			ServiceName:    "provider-directory",
			ServiceVersion: "1.0.0",
		},
		Discovery: DiscoveryConfig{
			DefaultPageSize:  20,
			MaxPageSize:      100,
			OperationTimeout: 5 * time.Second,
			FacetCacheTTL:    10 * time.Minute,
			Categories:       append([]string(nil), DefaultCategories...),
		},
		Rating: RatingConfig{
			LockBackend:       "local",
			LockTTL:           10 * time.Second,
			WriteAttempts:     3,
			ReconcileSchedule: "@every 5m",
			ReconcileBatch:    100,
		},
	}
}

// Load loads configuration from an optional YAML file named by CONFIG_FILE,
// then applies environment variable overrides.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvAsInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.AllowedOrigins = getEnvAsList("ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvAsInt("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime)

	cfg.Redis.Host = getEnv("REDIS_HOST", cfg.Redis.Host)
	cfg.Redis.Port = getEnvAsInt("REDIS_PORT", cfg.Redis.Port)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.OTEL.ServiceName = getEnv("OTEL_SERVICE_NAME", cfg.OTEL.ServiceName)
	cfg.OTEL.ServiceVersion = getEnv("OTEL_SERVICE_VERSION", cfg.OTEL.ServiceVersion)
	cfg.OTEL.Endpoint = getEnv("OTEL_ENDPOINT", cfg.OTEL.Endpoint)
	cfg.OTEL.Enabled = getEnvAsBool("OTEL_ENABLED", cfg.OTEL.Enabled)

	cfg.Discovery.DefaultPageSize = getEnvAsInt("DISCOVERY_DEFAULT_PAGE_SIZE", cfg.Discovery.DefaultPageSize)
	cfg.Discovery.MaxPageSize = getEnvAsInt("DISCOVERY_MAX_PAGE_SIZE", cfg.Discovery.MaxPageSize)
	cfg.Discovery.OperationTimeout = getEnvAsDuration("DISCOVERY_OPERATION_TIMEOUT", cfg.Discovery.OperationTimeout)
	cfg.Discovery.FacetCacheTTL = getEnvAsDuration("DISCOVERY_FACET_CACHE_TTL", cfg.Discovery.FacetCacheTTL)
	cfg.Discovery.Categories = getEnvAsList("DISCOVERY_CATEGORIES", cfg.Discovery.Categories)

	cfg.Rating.LockBackend = getEnv("RATING_LOCK_BACKEND", cfg.Rating.LockBackend)
	cfg.Rating.LockTTL = getEnvAsDuration("RATING_LOCK_TTL", cfg.Rating.LockTTL)
	cfg.Rating.AtomicSQL = getEnvAsBool("RATING_ATOMIC_SQL", cfg.Rating.AtomicSQL)
	cfg.Rating.WriteAttempts = getEnvAsInt("RATING_WRITE_ATTEMPTS", cfg.Rating.WriteAttempts)
	cfg.Rating.ReconcileSchedule = getEnv("RECONCILE_SCHEDULE", cfg.Rating.ReconcileSchedule)
	cfg.Rating.ReconcileBatch = getEnvAsInt("RECONCILE_BATCH", cfg.Rating.ReconcileBatch)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail at first use
func (c *Config) Validate() error {
	if c.Discovery.DefaultPageSize <= 0 {
		return fmt.Errorf("discovery default page size must be positive, got %d", c.Discovery.DefaultPageSize)
	}
	if c.Discovery.MaxPageSize < c.Discovery.DefaultPageSize {
		return fmt.Errorf("discovery max page size %d is below default %d", c.Discovery.MaxPageSize, c.Discovery.DefaultPageSize)
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Rating.LockBackend {
	case "local", "redis":
	default:
		return fmt.Errorf("unknown rating lock backend %q", c.Rating.LockBackend)
	}
	if c.Rating.WriteAttempts < 1 {
		return fmt.Errorf("rating write attempts must be at least 1")
	}
	if c.Rating.LockTTL <= 0 {
		return fmt.Errorf("rating lock ttl must be positive, got %s", c.Rating.LockTTL)
	}
	// a redis lease that expires mid-recompute lets another instance interleave its write
	if c.Rating.LockBackend == "redis" {
		if budget := c.RatingLockBudget(); c.Rating.LockTTL <= budget {
			return fmt.Errorf("rating lock ttl %s must exceed the recompute budget %s (operation timeout plus retry backoff)", c.Rating.LockTTL, budget)
		}
	}
	return nil
}

// RatingLockBudget is the longest a rating recompute may hold its lock: one
// operation timeout plus the backoff between write attempts
func (c *Config) RatingLockBudget() time.Duration {
	return c.Discovery.OperationTimeout + retry.QuickConfig(c.Rating.WriteAttempts).TotalBackoff()
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Enabled reports whether a Redis host is configured
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
