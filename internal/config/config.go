package config

import (
	"errors"
	"fmt"
	"net/url"
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
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string

	// StorefrontAPIURL is the pricing/tax/checkout backend the storefront
	// consumes. Only the storefront CLI needs it.
	StorefrontAPIURL string
	DefaultCurrency  string
	CatalogPath      string
	CatalogCacheTTL  time.Duration

	HTTPClientTimeout     time.Duration
	HTTPClientMaxAttempts int
	HTTPClientBackoff     time.Duration
	BreakerMinRequests    int
	BreakerFailureRatio   float64
	BreakerOpenFor        time.Duration
	CheckoutMaxAttempts   int

	EstimateRateLimit  int
	EstimateRateWindow time.Duration
	BodyLimitBytes     int64
	SecurityHeaders    bool

	Obs ObsConfig
}

// ObsConfig groups logging, metrics and tracing switches.
type ObsConfig struct {
	LogFormat          string
	LogLevel           string
	MetricsNamespace   string
	MetricsEnabled     bool
	MetricsBucketsMS   string
	TracingEnabled     bool
	TracingExporter    string
	OTLPEndpoint       string
	TracingSampling    float64
	PprofEnabled       bool
	PprofUser          string
	PprofPass          string
	HealthRedisTimeout time.Duration
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
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		StorefrontAPIURL: strings.TrimRight(strings.TrimSpace(k.String("STOREFRONT_API_URL")), "/"),
		DefaultCurrency:  strings.ToUpper(valueOrDefault(k.String("DEFAULT_CURRENCY"), "USD")),
		CatalogPath:      strings.TrimSpace(k.String("CATALOG_PATH")),
		CatalogCacheTTL:  parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),

		HTTPClientTimeout:     parseDuration(k.String("HTTP_CLIENT_TIMEOUT"), "5s"),
		HTTPClientMaxAttempts: parseInt(k.String("HTTP_CLIENT_MAX_ATTEMPTS"), 3),
		HTTPClientBackoff:     parseDuration(k.String("HTTP_CLIENT_BACKOFF"), "200ms"),
		BreakerMinRequests:    parseInt(k.String("BREAKER_MIN_REQUESTS"), 5),
		BreakerFailureRatio:   parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:        parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),
		CheckoutMaxAttempts:   parseInt(k.String("CHECKOUT_MAX_ATTEMPTS"), 3),

		EstimateRateLimit:  parseInt(k.String("ESTIMATE_RATE_LIMIT"), 120),
		EstimateRateWindow: parseDuration(k.String("ESTIMATE_RATE_WINDOW"), "1m"),
		BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 64<<10)),
		SecurityHeaders:    parseBool(k.String("SECURITY_HEADERS"), true),

		Obs: ObsConfig{
			LogFormat:          valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:           valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace:   valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "storefront"),
			MetricsEnabled:     parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsBucketsMS:   strings.TrimSpace(k.String("OBS_METRICS_BUCKETS_MS")),
			TracingEnabled:     parseBool(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:    valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:       strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			TracingSampling:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
			PprofEnabled:       parseBool(k.String("OBS_ENABLE_PPROF"), false),
			PprofUser:          strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
			PprofPass:          strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
			HealthRedisTimeout: parseDuration(k.String("HEALTH_READY_REDIS_TIMEOUT"), "300ms"),
		},
	}

	if len(cfg.DefaultCurrency) != 3 {
		return nil, fmt.Errorf("DEFAULT_CURRENCY must be a 3-letter code, got %q", cfg.DefaultCurrency)
	}
	if cfg.CatalogPath != "" && !strings.Contains(cfg.CatalogPath, "{currency}") {
		return nil, errors.New("CATALOG_PATH must contain the {currency} placeholder")
	}
	if cfg.StorefrontAPIURL != "" {
		if _, err := url.ParseRequestURI(cfg.StorefrontAPIURL); err != nil {
			return nil, fmt.Errorf("STOREFRONT_API_URL: %w", err)
		}
	}
	if cfg.BreakerFailureRatio <= 0 || cfg.BreakerFailureRatio > 1 {
		return nil, errors.New("BREAKER_FAILURE_RATIO must be in (0, 1]")
	}

	return cfg, nil
}

// RequireAPIURL reports an error when the storefront backend URL is missing.
func (c *Config) RequireAPIURL() error {
	if c.StorefrontAPIURL == "" {
		return errors.New("STOREFRONT_API_URL is required")
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
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
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
