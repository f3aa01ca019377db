package pendingorder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/agromarket/internal/checkout"
	"github.com/noah-isme/agromarket/internal/common"
	"github.com/noah-isme/agromarket/internal/events"
	"github.com/noah-isme/agromarket/internal/obs"
)

// Reconciliation error codes.
const (
	CodeNoPendingOrder = "NO_PENDING_ORDER"
	CodeOrderMismatch  = "ORDER_MISMATCH"
	CodeAmountMismatch = "AMOUNT_MISMATCH"
)

// Publisher emits domain events.
type Publisher interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Return carries what the payment provider hands back on a successful redirect.
type Return struct {
	PaymentKey string
	OrderID    string
	Amount     int64
}

// Failure carries what the payment provider hands back on a failed redirect.
type Failure struct {
	OrderID string
	Code    string
	Message string
}

// Reconciler matches provider redirects against the stored pending order.
type Reconciler struct {
	Store  Store
	Events Publisher
	Log    zerolog.Logger
}

// Confirm checks the provider's return against the pending order, clears the
// record and emits payment.returned. Mismatches leave the record in place.
func (r *Reconciler) Confirm(ctx context.Context, retailerID string, ret Return) (Record, error) {
	if r == nil || r.Store == nil {
		return Record{}, errors.New("pendingorder: reconciler not configured")
	}
	ctx, span := otel.Tracer("pendingorder.Reconciler").Start(ctx, "Confirm")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", ret.OrderID))

	result := "error"
	defer func() { obs.ObservePaymentReturn(result) }()

	rec, err := r.Store.Load(ctx, retailerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			result = "missing"
			return Record{}, common.NewAppError(CodeNoPendingOrder, "no pending order to confirm", http.StatusNotFound, err)
		}
		return Record{}, fmt.Errorf("load pending order: %w", err)
	}
	if strings.TrimSpace(ret.OrderID) != rec.OrderID {
		result = "order_mismatch"
		return Record{}, common.NewAppError(CodeOrderMismatch, "the returned order does not match your pending order", http.StatusConflict, nil)
	}
	if ret.Amount != rec.Amount {
		result = "amount_mismatch"
		r.Log.Warn().
			Str("order_id", rec.OrderID).
			Int64("expected", rec.Amount).
			Int64("returned", ret.Amount).
			Msg("payment amount differs from pending order")
		return Record{}, common.NewAppError(CodeAmountMismatch, "the paid amount does not match your order", http.StatusConflict, nil)
	}
	if err := r.Store.Clear(ctx, retailerID); err != nil {
		return Record{}, fmt.Errorf("clear pending order: %w", err)
	}
	result = "success"

	if r.Events != nil {
		userID, _ := common.UserID(ctx)
		payload := events.PaymentReturned{
			OrderID:    rec.OrderID,
			PaymentKey: ret.PaymentKey,
			RetailerID: retailerID,
			UserID:     userID,
			Amount:     rec.Amount,
			Items:      purchasedItems(rec.Items),
		}
		if _, err := r.Events.Emit(ctx, events.TopicPaymentReturned, rec.OrderID, payload); err != nil {
			r.Log.Warn().Err(err).Str("order_id", rec.OrderID).Msg("emit payment.returned")
		}
	}
	return rec, nil
}

// Fail records a failed provider redirect. The pending order stays so the
// buyer can retry.
func (r *Reconciler) Fail(ctx context.Context, retailerID string, f Failure) {
	if r == nil {
		return
	}
	obs.ObservePaymentReturn("failed")
	r.Log.Info().
		Str("order_id", f.OrderID).
		Str("code", f.Code).
		Msg("payment failed at provider")
	if r.Events == nil || strings.TrimSpace(f.OrderID) == "" {
		return
	}
	payload := events.PaymentFailed{OrderID: f.OrderID, RetailerID: retailerID, Code: f.Code, Message: f.Message}
	if _, err := r.Events.Emit(ctx, events.TopicPaymentFailed, f.OrderID, payload); err != nil {
		r.Log.Warn().Err(err).Str("order_id", f.OrderID).Msg("emit payment.failed")
	}
}

func purchasedItems(items []checkout.ValidatedItem) []events.PurchasedItem {
	out := make([]events.PurchasedItem, 0, len(items))
	for _, it := range items {
		out = append(out, events.PurchasedItem{ProductID: it.ProductID, VariantID: it.VariantID})
	}
	return out
}
