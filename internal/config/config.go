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

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	CORSAllowedOrigins []string

	// Lead exclusivity.
	ExclusivityWindow time.Duration

	// Compensation constants. Money values are integer cents; percentage
	// rates are basis points so the arithmetic stays exact.
	VehicleMileageRateCents  int64
	TransitMileageRateCents  int64
	RepHourlyRateCents       int64
	RepCommissionBps         int64
	CompanySalesRevenueBps   int64
	DefaultActivationRate    int64 // cents per hour billed to a brand with no configured rate
	PayrollWindowDays        int
	BonusSchedule            string // "stores:cents" pairs, e.g. "10:25000,25:75000"
	PayrollCacheTTL          time.Duration

	IdempotencyTTL   time.Duration
	LockTTL          time.Duration
	LockRetryBackoff time.Duration

	RateLimitWrites string // ulule/limiter formatted rate, e.g. "30-M"

	NotifyQueue       string
	NotifyConcurrency int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:      valueOrDefault(k.String("APP_ENV"), "development"),
		Port:        valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL: k.String("DATABASE_URL"),
		RedisURL:    k.String("REDIS_URL"),

		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		ExclusivityWindow: time.Duration(intOrDefault(k.String("LEAD_EXCLUSIVITY_DAYS"), 45)) * 24 * time.Hour,

		VehicleMileageRateCents: int64(intOrDefault(k.String("COMP_VEHICLE_MILEAGE_RATE_CENTS"), 35)),
		TransitMileageRateCents: int64(intOrDefault(k.String("COMP_TRANSIT_MILEAGE_RATE_CENTS"), 20)),
		RepHourlyRateCents:      int64(intOrDefault(k.String("COMP_REP_HOURLY_RATE_CENTS"), 2000)),
		RepCommissionBps:        int64(intOrDefault(k.String("COMP_REP_COMMISSION_BPS"), 200)),
		CompanySalesRevenueBps:  int64(intOrDefault(k.String("COMP_COMPANY_SALES_REVENUE_BPS"), 500)),
		DefaultActivationRate:   int64(intOrDefault(k.String("COMP_DEFAULT_ACTIVATION_RATE_CENTS"), 5000)),
		PayrollWindowDays:       intOrDefault(k.String("PAYROLL_WINDOW_DAYS"), 14),
		BonusSchedule:           valueOrDefault(k.String("COMP_BONUS_SCHEDULE"), "10:25000,25:75000,50:200000,100:500000"),
		PayrollCacheTTL:         parseDuration(k.String("PAYROLL_CACHE_TTL"), "5m"),

		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		LockTTL:          parseDuration(k.String("LOCK_TTL"), "30s"),
		LockRetryBackoff: parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),

		RateLimitWrites: valueOrDefault(k.String("RATE_LIMIT_WRITES"), "60-M"),

		NotifyQueue:       valueOrDefault(k.String("NOTIFY_QUEUE"), "crm-notify"),
		NotifyConcurrency: intOrDefault(k.String("NOTIFY_CONCURRENCY"), 4),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
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
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func intOrDefault(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	return parsed
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

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
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

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
