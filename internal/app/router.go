package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/toko-pricing/internal/cart"
	"github.com/noah-isme/toko-pricing/internal/checkout"
	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/health"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/ratelimit"
	"github.com/noah-isme/toko-pricing/internal/resilience"
	"github.com/noah-isme/toko-pricing/internal/security"
	"github.com/noah-isme/toko-pricing/internal/shipping"
)

// NewRouter builds the HTTP API. Wire must have been called.
func NewRouter(d *Dependencies) http.Handler {
	cfg := d.Config

	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if d.Registry != nil {
		reg, gatherer = d.Registry, d.Registry
	}

	checkoutHandler := &checkout.Handler{
		Carts:      d.Carts,
		Reconciler: d.Reconciler,
		Sessions:   d.CheckoutStore,
		Submitter:  d.Submitter,
		Validate:   d.Validator,
		Logger:     d.Logger,
	}
	cartHandler := &cart.Handler{
		Sessions: d.Carts,
		Validate: d.Validator,
		Price:    checkoutHandler.CartPricing,
		OnChange: checkoutHandler.ItemsChanged,
	}
	shipHandler := &shipping.Handler{Resolver: d.Reconciler.Engine.Shipping, Currency: cfg.CurrencyCode}

	var checks []health.Check
	if d.Redis != nil {
		checks = append(checks, health.RedisCheck("redis", d.Redis, 0))
	}
	healthHandler := health.Handler{Checks: checks}

	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
	limit := ratelimit.Handler{Limiter: d.CheckoutLimiter, Logger: d.Logger}
	bodyLimit := security.BodyLimit{Max: cfg.MaxBodyBytes}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.Obs.EnableTracing {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.Obs.EnablePrometheus {
		metrics := obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), reg)
		r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
		if err := resilience.RegisterMetrics(reg); err != nil {
			d.Logger.Error().Err(err).Msg("register breaker metrics")
		}
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: len(cfg.CORSAllowedOrigins) > 0,
		MaxAge:           300,
	}))

	if cfg.Obs.EnablePrometheus {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/shipping/regions", shipHandler.Regions)
		v.Get("/shipping/quote", shipHandler.Quote)

		v.Route("/carts", func(c chi.Router) {
			c.Use(bodyLimit.Middleware)
			c.With(idem.Middleware).Post("/", cartHandler.Create)
			c.Route("/{id}", func(one chi.Router) {
				one.Get("/", cartHandler.Get)
				one.Get("/quote/tax", checkoutHandler.QuoteTax)
				one.Get("/checkout", checkoutHandler.Get)
				one.Group(func(g chi.Router) {
					g.Use(idem.Middleware)
					g.Post("/items", cartHandler.AddItem)
					g.Patch("/items/{productId}", cartHandler.UpdateItem)
					g.Delete("/items/{productId}", cartHandler.RemoveItem)
					g.Delete("/items", cartHandler.Clear)
					g.Post("/merge", cartHandler.Merge)
					g.Put("/checkout/region", checkoutHandler.SelectRegion)
					g.Post("/checkout/finalize", checkoutHandler.Finalize)
					g.With(limit.Middleware).Post("/checkout", checkoutHandler.Submit)
				})
			})
		})
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
