package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartMutationsTotal counts cart mutations by operation.
	CartMutationsTotal *prometheus.CounterVec
	// CartPersistFailuresTotal counts swallowed cart persistence failures.
	CartPersistFailuresTotal *prometheus.CounterVec
	// CheckoutAttemptsTotal counts checkout finalize/submit outcomes.
	CheckoutAttemptsTotal *prometheus.CounterVec
	// CheckoutTotalAmount records submitted order totals in major currency units.
	CheckoutTotalAmount prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartMutationsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of cart mutations by operation.",
		}, []string{"op"}))
		CartPersistFailuresTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_persist_failures_total",
			Help:      "Count of cart persistence failures that were ignored.",
		}, []string{"op"}))
		CheckoutAttemptsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_attempts_total",
			Help:      "Count of checkout attempts by stage and result.",
		}, []string{"stage", "result"}))
		CheckoutTotalAmount = registerOrReuse(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_total_amount",
			Help:      "Distribution of submitted order totals in major currency units.",
			Buckets:   []float64{1000, 5000, 10000, 25000, 50000, 100000, 150000, 250000, 500000, 1000000},
		}))
	})
}

// CountCartMutation increments the cart mutation counter when registered.
func CountCartMutation(op string) {
	if CartMutationsTotal != nil {
		CartMutationsTotal.WithLabelValues(op).Inc()
	}
}

// CountCartPersistFailure increments the persistence failure counter when registered.
func CountCartPersistFailure(op string) {
	if CartPersistFailuresTotal != nil {
		CartPersistFailuresTotal.WithLabelValues(op).Inc()
	}
}

// CountCheckout records a checkout outcome when registered.
func CountCheckout(stage, result string) {
	if CheckoutAttemptsTotal != nil {
		CheckoutAttemptsTotal.WithLabelValues(stage, result).Inc()
	}
}

// ObserveCheckoutTotal records a submitted order total when registered.
func ObserveCheckoutTotal(total float64) {
	if CheckoutTotalAmount != nil {
		CheckoutTotalAmount.Observe(total)
	}
}
