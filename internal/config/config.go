// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Catalog sources.
const (
	CatalogSourcePostgres = "postgres"
	CatalogSourceFile     = "file"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	MigrateOnStart     bool
	MaxBodyBytes       int64

	Catalog   CatalogConfig
	Pricing   PricingConfig
	DraftTTL  time.Duration
	RateLimit RateLimitConfig
	Obs       ObsConfig
}

// CatalogConfig selects and guards the price list backend.
type CatalogConfig struct {
	Source              string
	File                string
	CacheTTL            time.Duration
	RetryAttempts       int
	RetryBase           time.Duration
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration
}

// PricingConfig tunes the pricing engine.
type PricingConfig struct {
	BatchWorkers         int
	DefaultExecutionDays int
}

// RateLimitConfig bounds pricing calls per client IP.
type RateLimitConfig struct {
	Enabled bool
	Rate    string
}

// ObsConfig controls logging, metrics and tracing.
type ObsConfig struct {
	ServiceName     string
	LogFormat       string
	LogLevel        string
	MetricsEnabled  bool
	HTTPBuckets     string
	TracingEnabled  bool
	TracingExporter string
	TracingEndpoint string
	SamplingRatio   float64
	PprofEnabled    bool
	PprofUser       string
	PprofPass       string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		MigrateOnStart:     parseBool(k.String("MIGRATE_ON_START"), false),
		MaxBodyBytes:       int64(parseInt(k.String("MAX_BODY_BYTES"), 1<<20)),
		Catalog: CatalogConfig{
			Source:              strings.ToLower(valueOrDefault(k.String("CATALOG_SOURCE"), CatalogSourceFile)),
			File:                valueOrDefault(k.String("CATALOG_FILE"), "configs/catalog.yaml"),
			CacheTTL:            parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
			RetryAttempts:       parseInt(k.String("CATALOG_RETRY_ATTEMPTS"), 3),
			RetryBase:           parseDuration(k.String("CATALOG_RETRY_BASE"), "50ms"),
			BreakerMinRequests:  parseInt(k.String("CATALOG_BREAKER_MIN_REQUESTS"), 10),
			BreakerFailureRatio: parseFloat(k.String("CATALOG_BREAKER_FAILURE_RATIO"), 0.5),
			BreakerOpenFor:      parseDuration(k.String("CATALOG_BREAKER_OPEN_FOR"), "30s"),
		},
		Pricing: PricingConfig{
			BatchWorkers:         parseInt(k.String("PRICING_BATCH_WORKERS"), 8),
			DefaultExecutionDays: parseInt(k.String("PRICING_DEFAULT_EXECUTION_DAYS"), 2),
		},
		DraftTTL: parseDuration(k.String("DRAFT_TTL"), "24h"),
		RateLimit: RateLimitConfig{
			Enabled: parseBool(k.String("RATE_LIMIT_ENABLED"), true),
			Rate:    valueOrDefault(k.String("RATE_LIMIT_RATE"), "300-M"),
		},
		Obs: ObsConfig{
			ServiceName:     valueOrDefault(k.String("OBS_SERVICE_NAME"), "laundry-pricing"),
			LogFormat:       valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:        valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:  parseBool(k.String("OBS_METRICS_ENABLED"), true),
			HTTPBuckets:     k.String("OBS_HTTP_BUCKETS_MS"),
			TracingEnabled:  parseBool(k.String("OBS_TRACING_ENABLED"), false),
			TracingExporter: valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			TracingEndpoint: k.String("OBS_TRACING_ENDPOINT"),
			SamplingRatio:   parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
			PprofEnabled:    parseBool(k.String("OBS_PPROF_ENABLED"), false),
			PprofUser:       strings.TrimSpace(k.String("PPROF_BASIC_AUTH_USER")),
			PprofPass:       k.String("PPROF_BASIC_AUTH_PASS"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Catalog.Source {
	case CatalogSourcePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when CATALOG_SOURCE=postgres")
		}
	case CatalogSourceFile:
		if strings.TrimSpace(c.Catalog.File) == "" {
			return errors.New("CATALOG_FILE is required when CATALOG_SOURCE=file")
		}
	default:
		return fmt.Errorf("CATALOG_SOURCE must be %q or %q, got %q", CatalogSourcePostgres, CatalogSourceFile, c.Catalog.Source)
	}
	if c.MigrateOnStart && c.DatabaseURL == "" {
		return errors.New("MIGRATE_ON_START requires DATABASE_URL")
	}
	if c.Pricing.BatchWorkers <= 0 {
		return errors.New("PRICING_BATCH_WORKERS must be positive")
	}
	if c.Pricing.DefaultExecutionDays <= 0 {
		return errors.New("PRICING_DEFAULT_EXECUTION_DAYS must be positive")
	}
	if c.Obs.PprofEnabled && c.IsProduction() && c.Obs.PprofUser == "" {
		return errors.New("OBS_PPROF_ENABLED in production requires PPROF_BASIC_AUTH_USER")
	}
	if c.Catalog.BreakerFailureRatio <= 0 || c.Catalog.BreakerFailureRatio > 1 {
		return errors.New("CATALOG_BREAKER_FAILURE_RATIO must be in (0, 1]")
	}
	return nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(strings.TrimSpace(c.AppEnv)) {
	case "prod", "production":
		return true
	default:
		return false
	}
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests overrides environment variables for the duration of one Load
// call. An empty value unsets the variable.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]*string, len(env))
	for key, value := range env {
		if prev, ok := os.LookupEnv(key); ok {
			original[key] = &prev
		} else {
			original[key] = nil
		}
		if err := setEnvVar(key, value); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]*string) error {
	var errs []string
	for key, value := range values {
		var err error
		if value == nil {
			err = os.Unsetenv(key)
		} else {
			err = os.Setenv(key, *value)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
