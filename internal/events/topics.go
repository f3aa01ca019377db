package events

// Topic constants for domain events emitted by the checkout core.
const (
	TopicOrderCreated    = "order.created"
	TopicPaymentReturned = "payment.returned"
	TopicPaymentFailed   = "payment.failed"
)

// DefaultTopics returns every topic the worker subscribes to.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicPaymentReturned,
		TopicPaymentFailed,
	}
}

// OrderCreated is the payload of TopicOrderCreated.
type OrderCreated struct {
	OrderID    string `json:"orderId"`
	OrderName  string `json:"orderName"`
	RetailerID string `json:"retailerId"`
	Amount     int64  `json:"amount"`
	ItemCount  int    `json:"itemCount"`
}

// PurchasedItem identifies a product/variant pairing that was paid for.
type PurchasedItem struct {
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId,omitempty"`
}

// PaymentReturned is the payload of TopicPaymentReturned.
type PaymentReturned struct {
	OrderID    string          `json:"orderId"`
	PaymentKey string          `json:"paymentKey"`
	RetailerID string          `json:"retailerId"`
	UserID     string          `json:"userId"`
	Amount     int64           `json:"amount"`
	Items      []PurchasedItem `json:"items"`
}

// PaymentFailed is the payload of TopicPaymentFailed.
type PaymentFailed struct {
	OrderID    string `json:"orderId"`
	RetailerID string `json:"retailerId"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}
