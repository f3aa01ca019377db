package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutOrdersTotal counts order creation outcomes by result code.
	CheckoutOrdersTotal *prometheus.CounterVec
	// CheckoutOrderAmount records server-computed order amounts in minor units.
	CheckoutOrderAmount prometheus.Histogram
	// CheckoutClientTotalDrift counts orders whose client total disagreed with the server.
	CheckoutClientTotalDrift prometheus.Counter
	// PaymentRequestsTotal counts payment session requests by outcome.
	PaymentRequestsTotal *prometheus.CounterVec
	// PaymentReturnsTotal counts provider return reconciliations by outcome.
	PaymentReturnsTotal *prometheus.CounterVec
	// EventsEmittedTotal counts published domain events by topic.
	EventsEmittedTotal *prometheus.CounterVec
	// EventsConsumedTotal counts worker event handling outcomes.
	EventsConsumedTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutOrdersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_orders_total",
			Help:      "Count of order creation outcomes.",
		}, []string{"result"})
		CheckoutOrderAmount = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_order_amount",
			Help:      "Server-computed order amounts in minor currency units.",
			Buckets:   prometheus.ExponentialBuckets(10000, 4, 8),
		})
		CheckoutClientTotalDrift = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_client_total_drift_total",
			Help:      "Orders whose client-supplied total differed from the recomputed amount.",
		})
		PaymentRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_requests_total",
			Help:      "Count of payment session requests by outcome.",
		}, []string{"result"})
		PaymentReturnsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_returns_total",
			Help:      "Count of payment provider returns by reconciliation outcome.",
		}, []string{"result"})
		EventsEmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Count of published domain events.",
		}, []string{"topic"})
		EventsConsumedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Count of domain events handled by the worker.",
		}, []string{"topic", "result"})

		mustRegisterCollector(reg, CheckoutOrdersTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutOrdersTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutOrderAmount, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				CheckoutOrderAmount = v
			}
		})
		mustRegisterCollector(reg, CheckoutClientTotalDrift, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				CheckoutClientTotalDrift = v
			}
		})
		mustRegisterCollector(reg, PaymentRequestsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentRequestsTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentReturnsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentReturnsTotal = v
			}
		})
		mustRegisterCollector(reg, EventsEmittedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				EventsEmittedTotal = v
			}
		})
		mustRegisterCollector(reg, EventsConsumedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				EventsConsumedTotal = v
			}
		})
	})
}

// ObserveCheckout records an order creation outcome. It is a no-op until
// MustRegisterDomainMetrics has run.
func ObserveCheckout(result string, amount int64, drift bool) {
	if CheckoutOrdersTotal != nil {
		CheckoutOrdersTotal.WithLabelValues(result).Inc()
	}
	if amount > 0 && CheckoutOrderAmount != nil {
		CheckoutOrderAmount.Observe(float64(amount))
	}
	if drift && CheckoutClientTotalDrift != nil {
		CheckoutClientTotalDrift.Inc()
	}
}

// ObservePaymentRequest records a payment session outcome.
func ObservePaymentRequest(result string) {
	if PaymentRequestsTotal != nil {
		PaymentRequestsTotal.WithLabelValues(result).Inc()
	}
}

// ObservePaymentReturn records a reconciliation outcome.
func ObservePaymentReturn(result string) {
	if PaymentReturnsTotal != nil {
		PaymentReturnsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveEventConsumed records a worker handling outcome.
func ObserveEventConsumed(topic, result string) {
	if EventsConsumedTotal != nil {
		EventsConsumedTotal.WithLabelValues(topic, result).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
