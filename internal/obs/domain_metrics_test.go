package obs_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/noah-isme/agromarket/internal/events"
	"github.com/noah-isme/agromarket/internal/obs"
)

func TestDomainMetricsObserve(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("agromarket", registry)

	before := testutil.ToFloat64(obs.CheckoutClientTotalDrift)
	obs.ObserveCheckout("success", 31500, true)
	obs.ObserveCheckout("MOQ_NOT_MET", 0, false)

	if got := testutil.ToFloat64(obs.CheckoutClientTotalDrift) - before; got != 1 {
		t.Fatalf("expected one drift sample, got %v", got)
	}
	if got := testutil.ToFloat64(obs.CheckoutOrdersTotal.WithLabelValues("MOQ_NOT_MET")); got < 1 {
		t.Fatalf("expected MOQ_NOT_MET outcome, got %v", got)
	}

	if err := (obs.EventMetrics{}).Notify(context.Background(), events.Event{Topic: events.TopicOrderCreated}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got := testutil.ToFloat64(obs.EventsEmittedTotal.WithLabelValues(events.TopicOrderCreated)); got < 1 {
		t.Fatalf("expected emitted event, got %v", got)
	}
}
