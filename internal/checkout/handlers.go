package checkout

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/agromarket/internal/cart"
	"github.com/noah-isme/agromarket/internal/common"
	"github.com/noah-isme/agromarket/internal/identity"
)

// OrderReader loads a retailer's order.
type OrderReader interface {
	FindByID(ctx context.Context, retailerID, orderID string) (Order, error)
}

// Handler exposes order creation over HTTP.
type Handler struct {
	Svc       *Service
	Orders    OrderReader
	Retailers RetailerLookup
}

type lineRequest struct {
	ProductID       string  `json:"productId"`
	VariantID       *string `json:"variantId"`
	Quantity        any     `json:"quantity"`
	ClientUnitPrice int64   `json:"clientUnitPrice"`
	SeenVersion     int64   `json:"seenVersion"`
}

type createRequest struct {
	Lines       []lineRequest `json:"lines"`
	Delivery    Delivery      `json:"delivery"`
	ClientTotal *int64        `json:"clientTotal"`
}

// Create handles POST /checkout/orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	in, ok := DecodeInput(w, r)
	if !ok {
		return
	}
	res := h.Svc.CreateOrderIntent(r.Context(), in)
	WriteResult(w, res)
}

// Get handles GET /checkout/orders/{orderID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Orders == nil || h.Retailers == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order lookup not configured", nil)
		return
	}
	retailer, err := h.Retailers.CurrentRetailer(r.Context())
	if err != nil {
		if errors.Is(err, identity.ErrUnauthenticated) || errors.Is(err, identity.ErrNoRetailer) {
			common.JSONError(w, http.StatusUnauthorized, CodeUnauthenticated, "retailer account required", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to resolve retailer", nil)
		return
	}
	order, err := h.Orders.FindByID(r.Context(), retailer.ID, chi.URLParam(r, "orderID"))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load order", nil)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{
		"orderId":        order.ID,
		"orderName":      order.Name,
		"status":         order.Status,
		"amount":         order.Amount,
		"productTotal":   order.ProductTotal,
		"shippingFee":    order.ShippingFee,
		"validatedItems": order.Items,
		"delivery":       order.Delivery,
		"createdAt":      order.CreatedAt,
	})
}

// WriteResult renders a Result using the canonical envelope.
func WriteResult(w http.ResponseWriter, res Result) {
	if res.Success {
		status := http.StatusCreated
		if res.Replayed {
			status = http.StatusOK
		}
		common.Data(w, status, res)
		return
	}
	var details any
	if len(res.Details) > 0 {
		details = res.Details
	}
	common.JSONError(w, StatusFor(res.Code), res.Code, res.Error, details)
}

// StatusFor maps a result code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeEmptyOrder, CodeInvalidQuantity, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeMOQNotMet, CodeInsufficientStock, CodePricingFailed:
		return http.StatusUnprocessableEntity
	case CodeStalePrice, CodeIdempotencyConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DecodeInput reads an order request body, coercing quantities. It writes the
// error response itself and reports false when the body is unusable.
func DecodeInput(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var payload createRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, CodeInvalidInput, "invalid JSON payload", nil)
		return Input{}, false
	}
	in := Input{
		Delivery:       payload.Delivery,
		ClientTotal:    payload.ClientTotal,
		IdempotencyKey: common.IdempotencyKey(r),
	}
	for _, l := range payload.Lines {
		qty, err := cart.CoerceQuantity(l.Quantity)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, CodeInvalidQuantity, "quantity for product "+strings.TrimSpace(l.ProductID)+" must be a positive whole number", nil)
			return Input{}, false
		}
		in.Lines = append(in.Lines, LineInput{
			ProductID:       strings.TrimSpace(l.ProductID),
			VariantID:       l.VariantID,
			Quantity:        qty,
			ClientUnitPrice: l.ClientUnitPrice,
			SeenVersion:     l.SeenVersion,
		})
	}
	return in, true
}
