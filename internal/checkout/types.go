package checkout

import (
	"time"

	"github.com/noah-isme/agromarket/internal/cart"
)

// Result codes returned by CreateOrderIntent.
const (
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeEmptyOrder          = "EMPTY_ORDER"
	CodeInvalidQuantity     = "INVALID_QUANTITY"
	CodeInvalidInput        = "INVALID_INPUT"
	CodePricingFailed       = "PRICING_FAILED"
	CodeStalePrice          = "STALE_PRICE"
	CodeMOQNotMet           = cart.CodeMOQNotMet
	CodeInsufficientStock   = cart.CodeInsufficientStock
	CodePersistFailed       = "PERSIST_FAILED"
	CodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	CodeUnavailable         = "UNAVAILABLE"
	CodeInternal            = "INTERNAL"
)

// GenericFailureMessage is shown for failures nobody anticipated.
const GenericFailureMessage = "unexpected error while creating the order"

// StatusPendingPayment is the status of a freshly created order.
const StatusPendingPayment = "PENDING_PAYMENT"

// LineInput is one line the buyer proposes to purchase. ClientUnitPrice is
// informational only.
type LineInput struct {
	ProductID       string  `json:"productId" validate:"required"`
	VariantID       *string `json:"variantId,omitempty"`
	Quantity        int     `json:"quantity" validate:"gt=0"`
	ClientUnitPrice int64   `json:"clientUnitPrice,omitempty"`
	SeenVersion     int64   `json:"seenVersion,omitempty"`
}

// Delivery carries how and when the buyer wants the order delivered.
type Delivery struct {
	Option     string `json:"option,omitempty" validate:"max=64"`
	TimeWindow string `json:"timeWindow,omitempty" validate:"max=64"`
	Note       string `json:"note,omitempty" validate:"max=500"`
	Address    string `json:"address,omitempty" validate:"max=500"`
}

// Input is the order creation request.
type Input struct {
	Lines          []LineInput `json:"lines" validate:"dive"`
	Delivery       Delivery    `json:"delivery"`
	ClientTotal    *int64      `json:"clientTotal,omitempty"`
	IdempotencyKey string      `json:"-"`
}

// ValidatedItem is a line re-priced from the catalog. ShippingFeePerUnit and
// ShippingFee are always present, zero when the product ships free.
type ValidatedItem struct {
	ProductID          string  `json:"productId"`
	VariantID          *string `json:"variantId,omitempty"`
	Name               string  `json:"name"`
	SellerID           string  `json:"sellerId,omitempty"`
	Quantity           int     `json:"quantity"`
	UnitPrice          int64   `json:"unitPrice"`
	ShippingFeePerUnit int64   `json:"shippingFeePerUnit"`
	ProductTotal       int64   `json:"productTotal"`
	ShippingFee        int64   `json:"shippingFee"`
	LineTotal          int64   `json:"lineTotal"`
}

// Order is the persisted order record.
type Order struct {
	ID                 string
	Name               string
	RetailerID         string
	Status             string
	Amount             int64
	ProductTotal       int64
	ShippingFee        int64
	Items              []ValidatedItem
	Delivery           Delivery
	IdempotencyKey     *string
	RequestFingerprint string
	CreatedAt          time.Time
}

// Result is the tagged outcome of CreateOrderIntent.
type Result struct {
	Success        bool                   `json:"success"`
	OrderID        string                 `json:"orderId,omitempty"`
	OrderName      string                 `json:"orderName,omitempty"`
	Amount         int64                  `json:"amount,omitempty"`
	ProductTotal   int64                  `json:"productTotal,omitempty"`
	ShippingFee    int64                  `json:"shippingFee"`
	ValidatedItems []ValidatedItem        `json:"validatedItems,omitempty"`
	Replayed       bool                   `json:"replayed,omitempty"`
	Code           string                 `json:"code,omitempty"`
	Error          string                 `json:"error,omitempty"`
	Details        []cart.ValidationError `json:"details,omitempty"`
}

func failure(code, message string) Result {
	return Result{Success: false, Code: code, Error: message}
}

func resultFromOrder(o Order, replayed bool) Result {
	return Result{
		Success:        true,
		OrderID:        o.ID,
		OrderName:      o.Name,
		Amount:         o.Amount,
		ProductTotal:   o.ProductTotal,
		ShippingFee:    o.ShippingFee,
		ValidatedItems: o.Items,
		Replayed:       replayed,
	}
}
