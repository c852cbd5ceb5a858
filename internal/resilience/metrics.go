package resilience

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	breakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "breaker_state",
		Help: "Current breaker state: 0=closed, 1=open, 2=half-open.",
	}, []string{"target"})
	breakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "breaker_transition_total",
		Help: "Count of breaker state transitions.",
	}, []string{"target", "from", "to"})
	breakerOpened = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "breaker_open_total",
		Help: "Number of times a breaker opened.",
	}, []string{"target"})
)

// RegisterMetrics exposes breaker metrics on reg. Registering twice is a no-op.
func RegisterMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{breakerState, breakerTransitions, breakerOpened} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}
