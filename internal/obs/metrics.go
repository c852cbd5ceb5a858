package obs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Route surfaces used as the "surface" label on HTTP metrics.
const (
	SurfaceCheckout = "checkout"
	SurfaceCart     = "cart"
	SurfaceShipping = "shipping"
	SurfaceOps      = "ops"
	SurfaceUnknown  = "unknown"
)

// Default latency buckets in milliseconds.
var defaultLatencyBuckets = []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000}

// HTTPMetrics groups Prometheus collectors for the pricing API.
type HTTPMetrics struct {
	ReqTotal *prometheus.CounterVec
	ReqDur   *prometheus.HistogramVec
	InFlight *prometheus.GaugeVec
}

// NewHTTPMetrics registers the HTTP collectors on reg, reusing collectors a
// previous call already registered there.
func NewHTTPMetrics(namespace string, buckets []float64, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(buckets) == 0 {
		buckets = defaultLatencyBuckets
	} else {
		sort.Float64s(buckets)
	}
	return &HTTPMetrics{
		ReqTotal: registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by surface, method, route and status.",
		}, []string{"surface", "method", "route", "status"})),
		ReqDur: registerOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds by surface and route.",
			Buckets:   buckets,
		}, []string{"surface", "method", "route"})),
		InFlight: registerOrReuse(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests by surface.",
		}, []string{"surface"})),
	}
}

// Surface classifies a route pattern or request path. Checkout covers the
// tax quote and every /checkout route; the rest of /carts is cart.
func Surface(route string) string {
	switch {
	case strings.Contains(route, "/checkout"), strings.Contains(route, "/quote/"):
		return SurfaceCheckout
	case strings.Contains(route, "/carts"):
		return SurfaceCart
	case strings.Contains(route, "/shipping"):
		return SurfaceShipping
	case strings.HasPrefix(route, "/health"), route == "/metrics":
		return SurfaceOps
	default:
		return SurfaceUnknown
	}
}

// ParseBucketsCSV converts a comma-separated list of bucket boundaries
// (milliseconds) into floats. Invalid or non-positive entries are skipped.
func ParseBucketsCSV(csv string) []float64 {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || v <= 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

// DurationMillis converts a duration to milliseconds for metric observation.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// registerOrReuse registers c, or returns the collector of the same type
// already registered under its descriptor.
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
	return c
}
