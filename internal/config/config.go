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

	"github.com/noah-isme/toko-pricing/internal/shipping"
)

// Cart storage backends.
const (
	CartStoreMemory = "memory"
	CartStoreRedis  = "redis"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CartStore          string
	CartTTL            time.Duration
	CartLockTTL        time.Duration
	CurrencyCode       string
	CORSAllowedOrigins []string
	IdempotencyTTL     time.Duration
	CheckoutRateLimit  string
	MaxBodyBytes       int64
	SecurityHeaders    bool

	TaxRate               float64
	ShippingFreeThreshold float64
	ShippingDefaultFee    float64
	ShippingRates         shipping.RateTable
	ShippingRatesFile     string

	Obs Observability
}

// Observability groups logging, metrics and tracing settings.
type Observability struct {
	LogFormat        string
	LogLevel         string
	EnablePrometheus bool
	MetricsNamespace string
	MetricsBuckets   string
	EnableTracing    bool
	OTLPEndpoint     string
	TracingExporter  string
	SamplingRatio    float64
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
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CartStore:          strings.ToLower(valueOrDefault(k.String("CART_STORE"), CartStoreMemory)),
		CartTTL:            parseDuration(k.String("CART_TTL"), "720h"),
		CartLockTTL:        parseDuration(k.String("CART_LOCK_TTL"), "10s"),
		CurrencyCode:       strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "NGN")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CheckoutRateLimit:  valueOrDefault(k.String("CHECKOUT_RATE_LIMIT"), "20-M"),
		ShippingRatesFile:  strings.TrimSpace(k.String("SHIPPING_RATES_FILE")),
		SecurityHeaders:    parseBoolDefault(k.String("SECURITY_HEADERS"), true),
		Obs: Observability{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			EnablePrometheus: parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "toko"),
			MetricsBuckets:   strings.TrimSpace(k.String("OBS_METRICS_BUCKETS_MS")),
			EnableTracing:    parseBoolDefault(k.String("OBS_ENABLE_TRACING"), false),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		},
	}

	var err error
	if cfg.TaxRate, err = parseFloat("PRICING_TAX_RATE", k.String("PRICING_TAX_RATE"), 0.075); err != nil {
		return nil, err
	}
	if cfg.ShippingFreeThreshold, err = parseFloat("SHIPPING_FREE_THRESHOLD", k.String("SHIPPING_FREE_THRESHOLD"), 150000); err != nil {
		return nil, err
	}
	if cfg.ShippingDefaultFee, err = parseFloat("SHIPPING_DEFAULT_FEE", k.String("SHIPPING_DEFAULT_FEE"), 3000); err != nil {
		return nil, err
	}
	if cfg.Obs.SamplingRatio, err = parseFloat("OBS_TRACING_SAMPLING_RATIO", k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0); err != nil {
		return nil, err
	}
	maxBody, err := parseFloat("HTTP_MAX_BODY_BYTES", k.String("HTTP_MAX_BODY_BYTES"), 64<<10)
	if err != nil {
		return nil, err
	}
	cfg.MaxBodyBytes = int64(maxBody)
	if cfg.ShippingRates, err = shipping.ParseRates(k.String("SHIPPING_RATES")); err != nil {
		return nil, fmt.Errorf("SHIPPING_RATES: %w", err)
	}

	if cfg.ShippingRatesFile != "" {
		file, err := shipping.LoadRatesFile(cfg.ShippingRatesFile)
		if err != nil {
			return nil, fmt.Errorf("SHIPPING_RATES_FILE: %w", err)
		}
		cfg.ShippingRates = cfg.ShippingRates.Merge(file.Rates)
		if file.DefaultFee != nil {
			cfg.ShippingDefaultFee = *file.DefaultFee
		}
		if file.FreeThreshold != nil {
			cfg.ShippingFreeThreshold = *file.FreeThreshold
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CartStore {
	case CartStoreMemory:
	case CartStoreRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when CART_STORE=redis")
		}
	default:
		return fmt.Errorf("CART_STORE must be %q or %q", CartStoreMemory, CartStoreRedis)
	}
	if c.TaxRate < 0 || c.TaxRate >= 1 {
		return errors.New("PRICING_TAX_RATE must be in [0,1)")
	}
	if c.ShippingFreeThreshold < 0 {
		return errors.New("SHIPPING_FREE_THRESHOLD must not be negative")
	}
	if c.ShippingDefaultFee < 0 {
		return errors.New("SHIPPING_DEFAULT_FEE must not be negative")
	}
	if c.Obs.SamplingRatio < 0 || c.Obs.SamplingRatio > 1 {
		return errors.New("OBS_TRACING_SAMPLING_RATIO must be in [0,1]")
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
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
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

func parseFloat(key, value string, fallback float64) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
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
