package app

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/nitro-storefront/internal/catalog"
	"github.com/noah-isme/nitro-storefront/internal/estimate"
	"github.com/noah-isme/nitro-storefront/internal/health"
	"github.com/noah-isme/nitro-storefront/internal/obs"
	"github.com/noah-isme/nitro-storefront/internal/pricing"
	"github.com/noah-isme/nitro-storefront/internal/ratelimit"
	"github.com/noah-isme/nitro-storefront/internal/recommend"
	"github.com/noah-isme/nitro-storefront/internal/security"
)

// Router mounts the pricing API.
func (d *Dependencies) Router() http.Handler {
	cfg := d.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.Obs.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.CORS(cfg.CORSAllowedOrigins))
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.AppEnv == "production"}.Middleware)

	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{Registry: d.Registry}))
	}
	if cfg.Obs.PprofEnabled {
		r.Mount("/debug", protectPprof(middleware.Profiler(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	healthHandler := health.Handler{
		Checks:  d.readinessChecks(),
		Timeout: cfg.Obs.HealthRedisTimeout,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Source: d.Catalogs})
	estimateHandler := estimate.NewHandler(estimate.HandlerConfig{
		Estimator: estimate.LocalEstimator{Catalogs: d.Catalogs, Logger: d.Logger},
		Validator: d.Validator,
	})
	suggestHandler := recommend.Handler{Catalogs: d.Catalogs, Validator: d.Validator}

	limited := ratelimit.Handler{
		Limiter: d.Limiter,
		Config: ratelimit.Config{
			Key:    ratelimit.ByClientIP("estimate"),
			Window: cfg.EstimateRateWindow,
			Max:    cfg.EstimateRateLimit,
		},
		OnError: func(err error) { d.Logger.Warn().Err(err).Msg("ratelimit_unavailable") },
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/pricing", catalogHandler.Pricing)
		api.Get("/pricing/currencies", catalogHandler.Currencies)
		api.Group(func(g chi.Router) {
			g.Use(limited.Middleware)
			g.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
			g.Post("/estimate", estimateHandler.Estimate)
			g.Post("/recommendations", suggestHandler.Suggest)
		})
	})
	return r
}

func (d *Dependencies) readinessChecks() map[string]health.Check {
	checks := map[string]health.Check{
		"catalog": func(ctx context.Context) error {
			cat, err := d.Catalogs.Load(ctx, d.Config.DefaultCurrency)
			if err != nil {
				return err
			}
			if len(cat.ProductFamilies) == 0 {
				return fmt.Errorf("catalog %s is empty", pricing.NormalizeCurrency(d.Config.DefaultCurrency))
			}
			return nil
		},
	}
	if d.Redis != nil {
		checks["redis"] = health.Redis(d.Redis)
	}
	return checks
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
