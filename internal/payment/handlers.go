package payment

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/agromarket/internal/cart"
	"github.com/noah-isme/agromarket/internal/checkout"
	"github.com/noah-isme/agromarket/internal/common"
	"github.com/noah-isme/agromarket/internal/identity"
	"github.com/noah-isme/agromarket/internal/pendingorder"
)

// CartLoader returns the buyer's session cart.
type CartLoader interface {
	Load(ctx context.Context, ownerID string) (*cart.Store, error)
}

// RetailerLookup resolves the paying retailer.
type RetailerLookup interface {
	CurrentRetailer(ctx context.Context) (identity.Retailer, error)
}

// HandlerConfig carries the provider settings for request handling.
type HandlerConfig struct {
	ClientKey  string
	Currency   string
	SuccessURL string
	FailURL    string
}

// Handler exposes the payment request and the provider redirect landings.
type Handler struct {
	Orders     OrderCreator
	Carts      CartLoader
	Pending    pendingorder.Store
	Reconciler *pendingorder.Reconciler
	Retailers  RetailerLookup
	NewWidget  func() Widget
	Config     HandlerConfig
	Log        zerolog.Logger
	Now        func() time.Time
}

type requestBody struct {
	Delivery checkout.Delivery `json:"delivery"`
}

// Request handles POST /payments/request. It runs a full payment session for
// the selected lines of the buyer's cart and returns where to send the buyer.
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Orders == nil || h.Carts == nil || h.Retailers == nil || h.NewWidget == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || strings.TrimSpace(userID) == "" {
		common.JSONError(w, http.StatusUnauthorized, checkout.CodeUnauthenticated, "login required", nil)
		return
	}
	retailer, ok := h.retailer(w, r)
	if !ok {
		return
	}
	var body requestBody
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, &body); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON payload", nil)
			return
		}
	}
	store, err := h.Carts.Load(r.Context(), userID)
	if err != nil {
		h.Log.Error().Err(err).Msg("load cart for payment")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load cart", nil)
		return
	}

	customer := Customer{Key: userID, Name: retailer.ContactName, Email: retailer.Email}
	if customer.Name == "" {
		customer.Name = retailer.BusinessName
	}
	ctrl := NewController(Config{
		ClientKey:         h.Config.ClientKey,
		Customer:          customer,
		RetailerID:        retailer.ID,
		Currency:          h.Config.Currency,
		ProvisionalAmount: store.Totals().Total,
		SuccessURL:        h.Config.SuccessURL,
		FailURL:           h.Config.FailURL,
		Widget:            h.NewWidget(),
		Orders:            h.Orders,
		Pending:           h.Pending,
		Log:               h.Log,
		Now:               h.Now,
	})
	defer ctrl.Close()

	if err := ctrl.Mount(r.Context()); err != nil {
		common.JSONError(w, http.StatusServiceUnavailable, CodeWidgetUnavailable, ctrl.Message(), nil)
		return
	}
	if err := ctrl.Render(r.Context()); err != nil {
		common.JSONError(w, http.StatusServiceUnavailable, CodeWidgetUnavailable, "the payment window could not be displayed", nil)
		return
	}
	attempt, err := ctrl.RequestPayment(r.Context(), Checkout{
		Lines:          store.Lines(),
		Delivery:       body.Delivery,
		IdempotencyKey: common.IdempotencyKey(r),
	})
	if err != nil {
		common.JSONError(w, http.StatusConflict, "SESSION_UNAVAILABLE", "payment session is not ready", nil)
		return
	}
	writeAttempt(w, attempt)
}

func writeAttempt(w http.ResponseWriter, a Attempt) {
	switch a.Outcome {
	case AttemptRedirect, AttemptSucceeded:
		common.Data(w, http.StatusOK, a)
	case AttemptBlocked:
		common.JSONError(w, http.StatusUnprocessableEntity, a.Code, a.Message, a.Details)
	default:
		var details any
		if len(a.Details) > 0 {
			details = a.Details
		}
		common.JSONError(w, statusForFailure(a.Code), a.Code, a.Message, details)
	}
}

func statusForFailure(code string) int {
	switch code {
	case CodeAmountSyncFailed, CodePaymentFailed:
		return http.StatusBadGateway
	case CodePendingSaveFailed:
		return http.StatusInternalServerError
	default:
		return checkout.StatusFor(code)
	}
}

// Success handles GET /payments/success, the provider's redirect after a
// completed payment.
func (h *Handler) Success(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Reconciler == nil || h.Retailers == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	q := r.URL.Query()
	ret := pendingorder.Return{
		PaymentKey: strings.TrimSpace(q.Get("paymentKey")),
		OrderID:    strings.TrimSpace(q.Get("orderId")),
	}
	amount, err := strconv.ParseInt(strings.TrimSpace(q.Get("amount")), 10, 64)
	if err != nil || ret.PaymentKey == "" || ret.OrderID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "paymentKey, orderId and amount are required", nil)
		return
	}
	ret.Amount = amount
	retailer, ok := h.retailer(w, r)
	if !ok {
		return
	}
	rec, err := h.Reconciler.Confirm(r.Context(), retailer.ID, ret)
	if err != nil {
		if common.IsAppError(err) {
			common.WriteError(w, err, http.StatusConflict)
			return
		}
		h.Log.Error().Err(err).Str("order_id", ret.OrderID).Msg("confirm payment return")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to confirm payment", nil)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{
		"paymentKey": ret.PaymentKey,
		"order":      rec,
	})
}

// Fail handles GET /payments/fail, the provider's redirect after a failed or
// cancelled payment.
func (h *Handler) Fail(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Reconciler == nil || h.Retailers == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	retailer, ok := h.retailer(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := pendingorder.Failure{
		OrderID: strings.TrimSpace(q.Get("orderId")),
		Code:    strings.TrimSpace(q.Get("code")),
		Message: strings.TrimSpace(q.Get("message")),
	}
	if f.Code == "" {
		f.Code = CodePaymentFailed
	}
	if f.Message == "" {
		f.Message = "the payment was not completed"
	}
	h.Reconciler.Fail(r.Context(), retailer.ID, f)
	common.Data(w, http.StatusOK, map[string]any{
		"orderId": f.OrderID,
		"code":    f.Code,
		"message": f.Message,
	})
}

func (h *Handler) retailer(w http.ResponseWriter, r *http.Request) (identity.Retailer, bool) {
	retailer, err := h.Retailers.CurrentRetailer(r.Context())
	if err != nil {
		if errors.Is(err, identity.ErrUnauthenticated) || errors.Is(err, identity.ErrNoRetailer) {
			common.JSONError(w, http.StatusUnauthorized, checkout.CodeUnauthenticated, "retailer account required", nil)
			return identity.Retailer{}, false
		}
		h.Log.Error().Err(err).Msg("resolve retailer")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to resolve retailer", nil)
		return identity.Retailer{}, false
	}
	return retailer, true
}
