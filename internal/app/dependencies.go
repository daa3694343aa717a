// Package app wires the pricing API: shared dependencies and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/nitro-storefront/internal/catalog"
	"github.com/noah-isme/nitro-storefront/internal/config"
	"github.com/noah-isme/nitro-storefront/internal/obs"
	"github.com/noah-isme/nitro-storefront/internal/ratelimit"
)

const limiterPrefix = "ratelimit:"

// Dependencies enumerates the services shared by the API handlers.
type Dependencies struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Redis       *redis.Client
	Validator   *validator.Validate
	Limiter     ratelimit.Limiter
	Catalogs    *catalog.Source
	Registry    *prometheus.Registry
	HTTPMetrics *obs.HTTPMetrics
}

// NewDependencies builds the dependency set. Redis is optional: without
// REDIS_URL the catalog cache always misses and rate limits are per process.
func NewDependencies(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	deps := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Validator: validator.New(validator.WithRequiredStructEnabled()),
		Registry:  prometheus.NewRegistry(),
	}

	if cfg.Obs.MetricsEnabled {
		deps.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, deps.Registry)
		deps.HTTPMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBucketsMS), deps.Registry)
	}

	rdb, err := NewRedis(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.Redis = rdb
	deps.Limiter = NewLimiter(rdb)

	source, err := catalog.NewSource(catalog.SourceConfig{
		PathTemplate: cfg.CatalogPath,
		Cache:        catalog.NewCache(rdb, cfg.CatalogCacheTTL),
		Logger:       logger.With().Str("component", "catalog").Logger(),
	})
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	deps.Catalogs = source
	return deps, nil
}

// NewRedis connects to REDIS_URL with tracing and metrics instrumentation. It
// returns a nil client when no URL is configured.
func NewRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		logger.Info().Msg("redis_disabled")
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if cfg.Obs.TracingEnabled {
		if err := redisotel.InstrumentTracing(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if cfg.Obs.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Obs.HealthRedisTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewLimiter shares counters through Redis when a client is available and
// falls back to a process-local store otherwise.
func NewLimiter(rdb *redis.Client) ratelimit.Limiter {
	if rdb != nil {
		return ratelimit.SlidingWindow{Client: rdb, Prefix: limiterPrefix}
	}
	return ratelimit.NewMemory(limiterPrefix)
}

// Close releases the Redis connection.
func (d *Dependencies) Close() error {
	if d == nil || d.Redis == nil {
		return nil
	}
	return d.Redis.Close()
}
