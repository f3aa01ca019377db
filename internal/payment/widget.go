package payment

import (
	"context"
	"errors"
	"fmt"
)

// DOM targets the hosted widget renders into.
const (
	PaymentMethodSelector = "#payment-method"
	AgreementSelector     = "#agreement"
)

// Fallback identity shown to the provider when the buyer profile lacks it.
const (
	FallbackCustomerName  = "Buyer"
	FallbackCustomerEmail = "buyer@agromarket.local"
)

// InitConfig identifies the merchant and the buyer to the widget.
type InitConfig struct {
	ClientKey   string
	CustomerKey string
}

// Amount is the value the widget will charge.
type Amount struct {
	Currency string
	Value    int64
}

// PaymentRequest is handed to the widget once the order exists.
type PaymentRequest struct {
	OrderID       string
	OrderName     string
	CustomerName  string
	CustomerEmail string
	SuccessURL    string
	FailURL       string
}

// Outcome is what the widget reports for a payment request. When Redirect is
// set the provider takes over the browser and the result arrives later on
// SuccessURL or FailURL.
type Outcome struct {
	Redirect    bool
	RedirectURL string
	PaymentKey  string
	OrderID     string
	Amount      int64
}

// Widget is the third-party payment SDK surface the controller drives.
type Widget interface {
	Init(ctx context.Context, cfg InitConfig) error
	SetAmount(ctx context.Context, amount Amount) error
	RenderPaymentMethods(ctx context.Context, selector string) error
	RenderAgreements(ctx context.Context, selector string) error
	RequestPayment(ctx context.Context, req PaymentRequest) (Outcome, error)
}

// WidgetError is a failure reported by the provider with its own code.
type WidgetError struct {
	Code    string
	Message string
}

func (e *WidgetError) Error() string {
	return fmt.Sprintf("payment widget: %s: %s", e.Code, e.Message)
}

// AsWidgetError extracts a WidgetError from err.
func AsWidgetError(err error) (*WidgetError, bool) {
	var we *WidgetError
	if errors.As(err, &we) {
		return we, true
	}
	return nil, false
}
