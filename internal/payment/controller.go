package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/agromarket/internal/cart"
	"github.com/noah-isme/agromarket/internal/checkout"
	"github.com/noah-isme/agromarket/internal/obs"
	"github.com/noah-isme/agromarket/internal/pendingorder"
)

// State is a payment session state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateWidgetLoading State = "widgetLoading"
	StateReady         State = "ready"
	StateAmountSyncing State = "amountSyncing"
	StateRequesting    State = "requesting"
	StateSucceeded     State = "succeeded"
	StateFailed        State = "failed"
)

var (
	// ErrNotReady is returned when an operation needs the ready state.
	ErrNotReady = errors.New("payment: session not ready")
	// ErrDiscarded is returned by a session that was closed.
	ErrDiscarded = errors.New("payment: session discarded")
)

// Failure codes raised by the controller itself.
const (
	CodeWidgetUnavailable = "WIDGET_UNAVAILABLE"
	CodeAmountSyncFailed  = "AMOUNT_SYNC_FAILED"
	CodePendingSaveFailed = "PENDING_SAVE_FAILED"
	CodePaymentFailed     = "PAYMENT_FAILED"
)

// OrderCreator creates the server-confirmed order. Both checkout.Service and
// checkout.Client satisfy it.
type OrderCreator interface {
	CreateOrderIntent(ctx context.Context, in checkout.Input) checkout.Result
}

// SyncPolicy decides whether the widget amount must be updated.
type SyncPolicy func(current, next int64) bool

// ShouldSyncAmount reports whether next differs from the configured amount.
// Re-sending an unchanged amount disrupts some payment methods.
func ShouldSyncAmount(current, next int64) bool {
	return next > 0 && next != current
}

// Customer identifies the buyer to the provider.
type Customer struct {
	Key   string
	Name  string
	Email string
}

// Success is delivered to OnSuccess.
type Success struct {
	PaymentKey string
	OrderID    string
	Amount     int64
}

// PlaceholderAmount configures the widget while no order exists yet, so the
// payment methods can render before the buyer has a provisional total.
const PlaceholderAmount int64 = 1

// Config wires a Controller.
type Config struct {
	ClientKey         string
	Customer          Customer
	RetailerID        string
	Currency          string
	ProvisionalAmount int64
	SuccessURL        string
	FailURL           string

	Widget  Widget
	Orders  OrderCreator
	Pending pendingorder.Store
	Sync    SyncPolicy

	OnSuccess func(Success)
	OnFailure func(message string)

	Log zerolog.Logger
	Now func() time.Time
}

// Checkout is the buyer's request to pay for the selected cart lines.
type Checkout struct {
	Lines          []cart.Line
	Delivery       checkout.Delivery
	IdempotencyKey string
}

// Outcome kinds reported by RequestPayment.
const (
	AttemptBlocked   = "blocked"
	AttemptFailed    = "failed"
	AttemptRedirect  = "redirect"
	AttemptSucceeded = "succeeded"
)

// Attempt is the outcome of RequestPayment.
type Attempt struct {
	Outcome     string                 `json:"outcome"`
	OrderID     string                 `json:"orderId,omitempty"`
	OrderName   string                 `json:"orderName,omitempty"`
	Amount      int64                  `json:"amount,omitempty"`
	PaymentKey  string                 `json:"paymentKey,omitempty"`
	RedirectURL string                 `json:"redirectUrl,omitempty"`
	Code        string                 `json:"code,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Validation  *cart.Validation       `json:"validation,omitempty"`
	Details     []cart.ValidationError `json:"details,omitempty"`
}

// Controller drives one payment session through the widget lifecycle.
// Widget calls are made without holding the lock so Close can always
// discard the session.
type Controller struct {
	cfg Config

	mu        sync.Mutex
	state     State
	amount    int64
	orderID   string
	orderName string
	rendered  bool
	inFlight  bool
	discarded bool
	message   string
}

// NewController builds a session in the uninitialized state.
func NewController(cfg Config) *Controller {
	if cfg.Sync == nil {
		cfg.Sync = ShouldSyncAmount
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{cfg: cfg, state: StateUninitialized}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Amount returns the amount the widget is configured with.
func (c *Controller) Amount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.amount
}

// Message returns the last user-visible failure message.
func (c *Controller) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// Mount loads the widget and configures it with the provisional amount, or
// PlaceholderAmount when there is none.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.discarded {
		c.mu.Unlock()
		return ErrDiscarded
	}
	if c.state != StateUninitialized {
		c.mu.Unlock()
		return nil
	}
	if c.cfg.Widget == nil {
		c.message = "payment is unavailable right now"
		c.mu.Unlock()
		return errors.New("payment: widget not configured")
	}
	c.state = StateWidgetLoading
	c.mu.Unlock()

	err := c.cfg.Widget.Init(ctx, InitConfig{ClientKey: c.cfg.ClientKey, CustomerKey: c.cfg.Customer.Key})
	provisional := c.cfg.ProvisionalAmount
	if provisional <= 0 {
		provisional = PlaceholderAmount
	}
	if err == nil {
		err = c.cfg.Widget.SetAmount(ctx, Amount{Currency: c.cfg.Currency, Value: provisional})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.discarded {
		return ErrDiscarded
	}
	if err != nil {
		c.state = StateUninitialized
		c.message = "the payment window could not be loaded, please try again"
		c.cfg.Log.Warn().Err(err).Msg("payment widget load failed")
		return err
	}
	c.amount = provisional
	c.state = StateReady
	return nil
}

// Render draws the payment methods and agreements once per mount.
func (c *Controller) Render(ctx context.Context) error {
	c.mu.Lock()
	if c.discarded {
		c.mu.Unlock()
		return ErrDiscarded
	}
	if c.state != StateReady {
		c.mu.Unlock()
		return ErrNotReady
	}
	if c.rendered {
		c.mu.Unlock()
		return nil
	}
	c.rendered = true
	c.mu.Unlock()

	err := c.cfg.Widget.RenderPaymentMethods(ctx, PaymentMethodSelector)
	if err == nil {
		err = c.cfg.Widget.RenderAgreements(ctx, AgreementSelector)
	}
	if err != nil {
		c.cfg.Log.Warn().Err(err).Msg("payment widget render failed")
	}
	return err
}

// SyncAmount updates the widget amount when the sync policy allows it.
func (c *Controller) SyncAmount(ctx context.Context, next int64) error {
	c.mu.Lock()
	if c.discarded {
		c.mu.Unlock()
		return ErrDiscarded
	}
	if c.state != StateReady {
		c.mu.Unlock()
		return ErrNotReady
	}
	if !c.cfg.Sync(c.amount, next) {
		c.mu.Unlock()
		return nil
	}
	c.state = StateAmountSyncing
	c.mu.Unlock()

	err := c.cfg.Widget.SetAmount(ctx, Amount{Currency: c.cfg.Currency, Value: next})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.discarded {
		return ErrDiscarded
	}
	c.state = StateReady
	if err != nil {
		return err
	}
	c.amount = next
	return nil
}

// RequestPayment validates the cart, creates the order, points the widget at
// the server amount, saves the pending order and only then asks the widget to
// take payment.
func (c *Controller) RequestPayment(ctx context.Context, co Checkout) (attempt Attempt, err error) {
	ctx, span := otel.Tracer("payment.Controller").Start(ctx, "RequestPayment")
	defer span.End()
	defer func() {
		label := attempt.Outcome
		if err != nil {
			label = "rejected"
		}
		span.SetAttributes(attribute.String("payment.outcome", label), attribute.String("order.id", attempt.OrderID))
		obs.ObservePaymentRequest(label)
	}()

	validation := cart.ValidateCartItems(co.Lines)
	if !cart.CanCheckout(validation) {
		first := validation.Errors[0]
		return Attempt{
			Outcome:    AttemptBlocked,
			Code:       first.Code,
			Message:    first.Message,
			Validation: &validation,
			Details:    validation.Errors,
		}, nil
	}

	c.mu.Lock()
	if c.discarded {
		c.mu.Unlock()
		return Attempt{}, ErrDiscarded
	}
	if c.state != StateReady || c.inFlight {
		c.mu.Unlock()
		return Attempt{}, ErrNotReady
	}
	c.state = StateRequesting
	c.inFlight = true
	c.mu.Unlock()

	if c.cfg.Orders == nil {
		return c.fail(checkout.CodeInternal, checkout.GenericFailureMessage, nil)
	}
	in := checkoutInput(co)
	res := c.cfg.Orders.CreateOrderIntent(ctx, in)
	if !res.Success {
		return c.fail(res.Code, res.Error, res.Details)
	}

	c.mu.Lock()
	if c.discarded {
		c.mu.Unlock()
		return Attempt{}, ErrDiscarded
	}
	c.orderID, c.orderName = res.OrderID, res.OrderName
	current := c.amount
	c.mu.Unlock()

	if c.cfg.Sync(current, res.Amount) {
		if err := c.cfg.Widget.SetAmount(ctx, Amount{Currency: c.cfg.Currency, Value: res.Amount}); err != nil {
			c.cfg.Log.Warn().Err(err).Str("order_id", res.OrderID).Msg("payment amount sync failed")
			return c.fail(CodeAmountSyncFailed, "we could not update the payment amount, please try again", nil)
		}
		c.mu.Lock()
		c.amount = res.Amount
		c.mu.Unlock()
	}

	if c.cfg.Pending != nil {
		rec := pendingorder.FromResult(c.cfg.RetailerID, res, co.Delivery, c.cfg.Now())
		if err := c.cfg.Pending.Save(ctx, c.cfg.RetailerID, rec); err != nil {
			c.cfg.Log.Error().Err(err).Str("order_id", res.OrderID).Msg("save pending order")
			return c.fail(CodePendingSaveFailed, "we could not prepare your payment, please try again", nil)
		}
	}

	out, werr := c.cfg.Widget.RequestPayment(ctx, PaymentRequest{
		OrderID:       res.OrderID,
		OrderName:     res.OrderName,
		CustomerName:  orFallback(c.cfg.Customer.Name, FallbackCustomerName),
		CustomerEmail: orFallback(c.cfg.Customer.Email, FallbackCustomerEmail),
		SuccessURL:    c.cfg.SuccessURL,
		FailURL:       c.cfg.FailURL,
	})
	if werr != nil {
		code, msg := CodePaymentFailed, "the payment could not be completed, please try again"
		if we, ok := AsWidgetError(werr); ok {
			if we.Code != "" {
				code = we.Code
			}
			if we.Message != "" {
				msg = we.Message
			}
		}
		c.cfg.Log.Info().Err(werr).Str("order_id", res.OrderID).Msg("payment request failed")
		return c.fail(code, msg, nil)
	}

	attempt = Attempt{OrderID: res.OrderID, OrderName: res.OrderName, Amount: res.Amount}

	c.mu.Lock()
	if c.discarded {
		c.mu.Unlock()
		return Attempt{}, ErrDiscarded
	}
	c.inFlight = false
	if out.Redirect {
		c.mu.Unlock()
		attempt.Outcome = AttemptRedirect
		attempt.RedirectURL = out.RedirectURL
		return attempt, nil
	}
	c.state = StateSucceeded
	c.mu.Unlock()

	success := Success{PaymentKey: out.PaymentKey, OrderID: orFallback(out.OrderID, res.OrderID), Amount: out.Amount}
	if success.Amount == 0 {
		success.Amount = res.Amount
	}
	if c.cfg.OnSuccess != nil {
		c.cfg.OnSuccess(success)
	}
	attempt.Outcome = AttemptSucceeded
	attempt.PaymentKey = success.PaymentKey
	return attempt, nil
}

// Close discards the session. Outcomes that arrive afterwards are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discarded = true
	c.inFlight = false
}

func (c *Controller) fail(code, message string, details []cart.ValidationError) (Attempt, error) {
	c.mu.Lock()
	if c.discarded {
		c.mu.Unlock()
		return Attempt{}, ErrDiscarded
	}
	c.state = StateFailed
	c.message = message
	orderID := c.orderID
	c.state = StateReady
	c.inFlight = false
	c.mu.Unlock()

	if c.cfg.OnFailure != nil {
		c.cfg.OnFailure(message)
	}
	return Attempt{Outcome: AttemptFailed, OrderID: orderID, Code: code, Message: message, Details: details}, nil
}

func checkoutInput(co Checkout) checkout.Input {
	in := checkout.Input{Delivery: co.Delivery, IdempotencyKey: co.IdempotencyKey}
	var selected []cart.Line
	for _, l := range co.Lines {
		if !l.Selected {
			continue
		}
		selected = append(selected, l)
		in.Lines = append(in.Lines, checkout.LineInput{
			ProductID:       l.ProductID,
			VariantID:       l.VariantID,
			Quantity:        l.Quantity,
			ClientUnitPrice: l.UnitPrice,
			SeenVersion:     l.Version,
		})
	}
	total := cart.SumLines(selected).Total
	in.ClientTotal = &total
	return in
}

func orFallback(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
