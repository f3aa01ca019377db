package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/agromarket/internal/cart"
	"github.com/noah-isme/agromarket/internal/events"
	"github.com/noah-isme/agromarket/internal/obs"
)

// CartPurger removes paid-for lines from a buyer's cart.
type CartPurger interface {
	RemovePurchased(ctx context.Context, ownerID string, refs []cart.ItemRef) (int, error)
}

// Consumer handles the domain events emitted by the checkout core.
type Consumer struct {
	Carts CartPurger
	Log   zerolog.Logger
}

// Register binds every handled topic on mux.
func (c *Consumer) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(events.TopicOrderCreated, c.observe(c.OrderCreated))
	mux.HandleFunc(events.TopicPaymentReturned, c.observe(c.PaymentReturned))
	mux.HandleFunc(events.TopicPaymentFailed, c.observe(c.PaymentFailed))
}

// OrderCreated records the new order.
func (c *Consumer) OrderCreated(_ context.Context, ev events.Event) error {
	var payload events.OrderCreated
	if err := decodePayload(ev, &payload); err != nil {
		return err
	}
	c.Log.Info().
		Str("order_id", payload.OrderID).
		Str("retailer_id", payload.RetailerID).
		Int64("amount", payload.Amount).
		Int("items", payload.ItemCount).
		Msg("order created")
	return nil
}

// PaymentReturned drops the purchased lines from the buyer's cart.
func (c *Consumer) PaymentReturned(ctx context.Context, ev events.Event) error {
	var payload events.PaymentReturned
	if err := decodePayload(ev, &payload); err != nil {
		return err
	}
	log := c.Log.With().Str("order_id", payload.OrderID).Str("retailer_id", payload.RetailerID).Logger()
	if strings.TrimSpace(payload.UserID) == "" || len(payload.Items) == 0 {
		log.Warn().Msg("payment returned without cart owner or items")
		return nil
	}
	if c.Carts == nil {
		return errors.New("queue: cart purger not configured")
	}
	refs := make([]cart.ItemRef, 0, len(payload.Items))
	for _, it := range payload.Items {
		refs = append(refs, cart.ItemRef{ProductID: it.ProductID, VariantID: it.VariantID})
	}
	removed, err := c.Carts.RemovePurchased(ctx, payload.UserID, refs)
	if err != nil {
		return fmt.Errorf("purge cart: %w", err)
	}
	log.Info().Int("removed", removed).Int64("amount", payload.Amount).Msg("payment returned")
	return nil
}

// PaymentFailed records the provider failure. The order stays pending payment
// so the buyer can retry.
func (c *Consumer) PaymentFailed(_ context.Context, ev events.Event) error {
	var payload events.PaymentFailed
	if err := decodePayload(ev, &payload); err != nil {
		return err
	}
	c.Log.Warn().
		Str("order_id", payload.OrderID).
		Str("retailer_id", payload.RetailerID).
		Str("code", payload.Code).
		Str("message", payload.Message).
		Msg("payment failed")
	return nil
}

func (c *Consumer) observe(fn func(context.Context, events.Event) error) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		ev, err := events.Decode(task)
		if err != nil {
			obs.ObserveEventConsumed(task.Type(), "invalid")
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		ctx, span := otel.Tracer("queue.Consumer").Start(ctx, ev.Topic)
		defer span.End()
		span.SetAttributes(
			attribute.String("event.id", ev.ID),
			attribute.String("event.aggregate_id", ev.AggregateID),
		)
		if err := fn(ctx, ev); err != nil {
			span.RecordError(err)
			result := "error"
			if errors.Is(err, asynq.SkipRetry) {
				result = "invalid"
			}
			obs.ObserveEventConsumed(ev.Topic, result)
			c.Log.Error().Err(err).Str("topic", ev.Topic).Str("event_id", ev.ID).Msg("handle event")
			return err
		}
		obs.ObserveEventConsumed(ev.Topic, "ok")
		return nil
	}
}

func decodePayload(ev events.Event, dst any) error {
	if err := json.Unmarshal(ev.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w: %w", ev.Topic, err, asynq.SkipRetry)
	}
	return nil
}
