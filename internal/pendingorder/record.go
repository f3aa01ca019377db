package pendingorder

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/agromarket/internal/checkout"
)

// ErrNotFound is returned when no pending order is stored for the retailer.
var ErrNotFound = errors.New("pendingorder: not found")

// Record is the snapshot written just before the buyer is handed to the
// payment provider. It is the only source for what the buyer meant to buy
// once the provider redirects back.
type Record struct {
	OrderID    string                   `json:"orderId"`
	OrderName  string                   `json:"orderName"`
	RetailerID string                   `json:"retailerId"`
	Items      []checkout.ValidatedItem `json:"items"`
	Delivery   checkout.Delivery        `json:"delivery"`
	Amount     int64                    `json:"amount"`
	CreatedAt  time.Time                `json:"createdAt"`
}

// Store keeps at most one pending order per retailer. Save overwrites the
// previous attempt.
type Store interface {
	Save(ctx context.Context, retailerID string, rec Record) error
	Load(ctx context.Context, retailerID string) (Record, error)
	Clear(ctx context.Context, retailerID string) error
}

// FromResult builds the record for a successful order creation.
func FromResult(retailerID string, res checkout.Result, delivery checkout.Delivery, now time.Time) Record {
	items := make([]checkout.ValidatedItem, len(res.ValidatedItems))
	copy(items, res.ValidatedItems)
	for i := range items {
		if items[i].ShippingFeePerUnit < 0 {
			items[i].ShippingFeePerUnit = 0
		}
		if items[i].ShippingFee < 0 {
			items[i].ShippingFee = 0
		}
	}
	return Record{
		OrderID:    res.OrderID,
		OrderName:  res.OrderName,
		RetailerID: retailerID,
		Items:      items,
		Delivery:   delivery,
		Amount:     res.Amount,
		CreatedAt:  now.UTC(),
	}
}
