package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-pricing/internal/common"
)

var draining atomic.Bool

// SetReady toggles readiness. Shutdown flips it off so load balancers stop
// routing new requests before the server closes.
func SetReady(ready bool) {
	draining.Store(!ready)
}

// Check is a named dependency check.
type Check struct {
	Name    string
	Timeout time.Duration
	Ping    func(ctx context.Context) error
}

// RedisCheck pings a Redis client.
func RedisCheck(name string, client *redis.Client, timeout time.Duration) Check {
	return Check{
		Name:    name,
		Timeout: timeout,
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checks []Check
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency checks. With no checks
// configured the service is ready unless it is draining.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{}
	healthy := true
	if draining.Load() {
		status["server"] = "draining"
		healthy = false
	}
	for _, c := range h.Checks {
		result := "ok"
		if err := c.run(r.Context()); err != nil {
			result = err.Error()
			healthy = false
		}
		status[c.Name] = result
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, status)
}

func (c Check) run(ctx context.Context) error {
	if c.Ping == nil {
		return nil
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Ping(ctx)
}
