package app

import (
	"context"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/toko-pricing/internal/cart"
	"github.com/noah-isme/toko-pricing/internal/checkout"
	"github.com/noah-isme/toko-pricing/internal/config"
	"github.com/noah-isme/toko-pricing/internal/lock"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/ratelimit"
	"github.com/noah-isme/toko-pricing/internal/resilience"
	"github.com/noah-isme/toko-pricing/internal/shipping"
)

const (
	submitBreakerMinRequests  = 5
	submitBreakerFailureRatio = 0.5
	submitBreakerOpenFor      = 30 * time.Second
)

// Dependencies enumerates the services shared by the HTTP layer.
type Dependencies struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Redis     *redis.Client
	Validator *validator.Validate
	// Registry receives HTTP and domain metrics. Nil uses the default registry.
	Registry  *prometheus.Registry
	Submitter checkout.Submitter

	Carts           *cart.Sessions
	Reconciler      *checkout.Reconciler
	CheckoutStore   checkout.SessionStore
	CheckoutLimiter *limiter.Limiter
}

// NewRedis connects and instruments a Redis client.
func NewRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Wire fills the cart, pricing and checkout services from configuration.
// With CART_STORE=redis carts, checkout sessions and rate limits live in
// Redis and carts are locked across instances.
func (d *Dependencies) Wire() error {
	cfg := d.Config
	if cfg == nil {
		return fmt.Errorf("app: config is required")
	}
	if d.Validator == nil {
		d.Validator = validator.New()
	}
	if d.Submitter == nil {
		d.Submitter = checkout.LogSubmitter{Logger: d.Logger}
	}
	d.Submitter = checkout.BreakerSubmitter{
		Next:    d.Submitter,
		Breaker: resilience.NewBreaker("order_submit", submitBreakerMinRequests, submitBreakerFailureRatio, submitBreakerOpenFor, d.Logger),
	}

	d.Reconciler = &checkout.Reconciler{
		Engine: &pricing.Engine{
			TaxRate: cfg.TaxRate,
			Shipping: &shipping.Resolver{
				Rates:         cfg.ShippingRates,
				DefaultFee:    cfg.ShippingDefaultFee,
				FreeThreshold: cfg.ShippingFreeThreshold,
			},
		},
		Currency: cfg.CurrencyCode,
	}

	d.Carts = &cart.Sessions{Logger: d.Logger, LockTTL: cfg.CartLockTTL}
	var limiterClient *redis.Client
	switch cfg.CartStore {
	case config.CartStoreRedis:
		if d.Redis == nil {
			return fmt.Errorf("app: redis client required for CART_STORE=redis")
		}
		client, ttl := d.Redis, cfg.CartTTL
		d.Carts.Persisters = func(id string) cart.Persister {
			return cart.NewRedisPersister(client, cart.Key(id), ttl)
		}
		d.Carts.Locker = lock.Redis{R: client, Logger: d.Logger}
		d.Carts.Shared = true
		d.CheckoutStore = checkout.RedisSessionStore{R: client, TTL: ttl}
		limiterClient = client
	default:
		d.CheckoutStore = &checkout.MemorySessionStore{}
	}

	lim, err := ratelimit.NewLimiter(cfg.CheckoutRateLimit, limiterClient, "ratelimit:checkout")
	if err != nil {
		return fmt.Errorf("app: CHECKOUT_RATE_LIMIT: %w", err)
	}
	d.CheckoutLimiter = lim
	return nil
}
