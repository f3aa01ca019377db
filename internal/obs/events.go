package obs

import (
	"context"

	"github.com/noah-isme/agromarket/internal/events"
)

// EventMetrics counts emitted events per topic.
type EventMetrics struct{}

// Notify implements events.Notifier.
func (EventMetrics) Notify(_ context.Context, ev events.Event) error {
	if EventsEmittedTotal != nil {
		EventsEmittedTotal.WithLabelValues(ev.Topic).Inc()
	}
	return nil
}
