package resilience

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

var (
	metricsOnce sync.Once

	// BreakerState reports the current breaker state: 0=closed,1=open,2=half-open.
	BreakerState *prometheus.GaugeVec
	// BreakerTransitions counts breaker state transitions.
	BreakerTransitions *prometheus.CounterVec
	// BreakerOpenedTotal counts transitions into the open state.
	BreakerOpenedTotal *prometheus.CounterVec
)

// MustRegisterMetrics registers breaker collectors once.
func MustRegisterMetrics(namespace string, reg prometheus.Registerer) {
	metricsOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Current breaker state: 0=closed,1=open,2=half-open",
		}, []string{"target"})
		BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transition_total",
			Help:      "Count of breaker state transitions",
		}, []string{"target", "from", "to"})
		BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_open_total",
			Help:      "Number of times a breaker transitioned into open state",
		}, []string{"target"})
		reg.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
	})
}

func recordState(target string, state gobreaker.State) {
	if BreakerState == nil {
		return
	}
	BreakerState.WithLabelValues(target).Set(stateGaugeValue(state))
}

func recordTransition(target string, from, to gobreaker.State) {
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(target, from.String(), to.String()).Inc()
	}
	if to == gobreaker.StateOpen && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(target).Inc()
	}
}

func stateGaugeValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
