package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("toko", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/health/ready"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(obs.SurfaceOps, http.MethodGet, "/health/ready", "204")))
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight.WithLabelValues(obs.SurfaceOps)))
}

func TestHTTPMetricsCheckoutSurface(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("toko", nil, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	r.Post("/api/v1/carts/{id}/checkout", ok)
	r.Post("/api/v1/carts/{id}/items", ok)
	r.Get("/api/v1/shipping/quote", ok)

	for _, path := range []string{"/api/v1/carts/c1/checkout", "/api/v1/carts/c2/checkout", "/api/v1/carts/c1/items"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, path, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/shipping/quote", nil))

	require.Equal(t, 2.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(obs.SurfaceCheckout, http.MethodPost, "/api/v1/carts/{id}/checkout", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(obs.SurfaceCart, http.MethodPost, "/api/v1/carts/{id}/items", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(obs.SurfaceShipping, http.MethodGet, "/api/v1/shipping/quote", "200")))
}

func TestSurface(t *testing.T) {
	cases := map[string]string{
		"/api/v1/carts/{id}/checkout/finalize": obs.SurfaceCheckout,
		"/api/v1/carts/{id}/quote/tax":         obs.SurfaceCheckout,
		"/api/v1/carts/{id}/merge":             obs.SurfaceCart,
		"/api/v1/carts/":                       obs.SurfaceCart,
		"/api/v1/shipping/regions":             obs.SurfaceShipping,
		"/health/live":                         obs.SurfaceOps,
		"/metrics":                             obs.SurfaceOps,
		"unknown":                              obs.SurfaceUnknown,
	}
	for route, want := range cases {
		require.Equal(t, want, obs.Surface(route), route)
	}
}

func TestHTTPMetricsReuseRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("toko", nil, registry)
	second := obs.NewHTTPMetrics("toko", nil, registry)
	require.Same(t, first.ReqTotal, second.ReqTotal)
	require.Same(t, first.InFlight, second.InFlight)
}

func TestParseBucketsCSV(t *testing.T) {
	require.Nil(t, obs.ParseBucketsCSV(" "))
	require.Equal(t, []float64{5, 2.5, 100}, obs.ParseBucketsCSV("5, 2.5,,abc,-1,100"))
}

func TestRequestLoggerRecordsCartRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLoggerTo(&buf, "json", "debug")

	r := chi.NewRouter()
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Get("/api/v1/carts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/carts/abc?region=Lagos", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "/api/v1/carts/{id}", entry["route"])
	require.Equal(t, "abc", entry["cart_id"])
	require.Equal(t, "Lagos", entry["region"])
	require.EqualValues(t, 404, entry["status"])
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLoggerTo(&buf, "json", "warn")
	logger.Info().Msg("hidden")
	require.Zero(t, buf.Len())
	logger.Warn().Msg("shown")
	require.Contains(t, buf.String(), "shown")

	buf.Reset()
	fallback := obs.NewLoggerTo(&buf, "json", "bogus")
	fallback.Debug().Msg("hidden")
	fallback.Info().Msg("shown")
	require.Contains(t, buf.String(), "shown")
	require.NotContains(t, buf.String(), "hidden")
}

func TestDomainMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("toko_test", registry)

	obs.CountCartMutation("add")
	obs.CountCheckout("submit", "ok")
	obs.ObserveCheckoutTotal(4650)

	require.Equal(t, 1.0, testutil.ToFloat64(obs.CartMutationsTotal.WithLabelValues("add")))
	require.Equal(t, 1.0, testutil.ToFloat64(obs.CheckoutAttemptsTotal.WithLabelValues("submit", "ok")))
	require.Equal(t, 1, testutil.CollectAndCount(obs.CheckoutTotalAmount))
}
