package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/toko-pricing/internal/common"
)

// NewLimiter builds a limiter for a formatted rate such as "20-M". Counters
// live in Redis when a client is given, otherwise in process.
func NewLimiter(formatted string, client *redis.Client, prefix string) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(strings.TrimSpace(formatted))
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", formatted, err)
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	var store limiter.Store
	if client != nil {
		store, err = limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
		if err != nil {
			return nil, fmt.Errorf("create redis limiter store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute})
	}
	return limiter.New(store, rate), nil
}

// CartKey scopes limits to the client address and the cart in the path.
func CartKey(r *http.Request) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return ip + "|" + chi.URLParam(r, "id")
}

// Handler enforces rate limits before delegating to the next handler.
type Handler struct {
	Limiter *limiter.Limiter
	Key     func(*http.Request) string
	Logger  zerolog.Logger
}

// Middleware rejects requests over the limit with 429. Store failures let
// the request through.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		keyFn := h.Key
		if keyFn == nil {
			keyFn = CartKey
		}
		ctx, err := h.Limiter.Get(r.Context(), keyFn(r))
		if err != nil {
			h.Logger.Warn().Err(err).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(ctx.Reset, 10))

		if ctx.Reached {
			retryAfter := time.Until(time.Unix(ctx.Reset, 0)).Seconds()
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(int(retryAfter)))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
