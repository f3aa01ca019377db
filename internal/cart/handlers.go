package cart

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/agromarket/internal/catalog"
	"github.com/noah-isme/agromarket/internal/common"
	"github.com/noah-isme/agromarket/internal/pricing"
)

// PriceSource resolves the display snapshot for a product added to the cart.
type PriceSource interface {
	Lookup(ctx context.Context, productID string, variantID *string) (catalog.Price, error)
}

// Handler exposes the authenticated buyer's session cart over HTTP.
type Handler struct {
	Repo    *Repository
	Catalog PriceSource
	Log     zerolog.Logger
}

// View is the cart payload returned by every cart endpoint.
type View struct {
	Lines       []Line         `json:"lines"`
	Totals      pricing.Totals `json:"totals"`
	Validation  Validation     `json:"validation"`
	CanCheckout bool           `json:"canCheckout"`
}

// NewView snapshots the store for rendering.
func NewView(s *Store) View {
	v := s.Validate()
	return View{
		Lines:       s.Lines(),
		Totals:      s.Totals(),
		Validation:  v,
		CanCheckout: CanCheckout(v),
	}
}

type addItemRequest struct {
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId"`
	Quantity  any     `json:"quantity"`
}

type updateItemRequest struct {
	Quantity any   `json:"quantity"`
	Selected *bool `json:"selected"`
}

// Get returns the current cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	_, store, ok := h.load(w, r)
	if !ok {
		return
	}
	common.Data(w, http.StatusOK, NewView(store))
}

// AddItem adds a product to the cart, merging with an existing line for the
// same product and variant.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload addItemRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON payload", nil)
		return
	}
	qty, err := CoerceQuantity(payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	productID := strings.TrimSpace(payload.ProductID)
	if productID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "productId is required", nil)
		return
	}
	if h.Catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog not configured", nil)
		return
	}
	owner, store, ok := h.load(w, r)
	if !ok {
		return
	}
	price, err := h.Catalog.Lookup(r.Context(), productID, payload.VariantID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := store.Add(lineFromPrice(price, qty)); err != nil {
		h.writeError(w, err)
		return
	}
	h.save(w, r, owner, store, http.StatusCreated)
}

// UpdateItem changes the quantity and/or selection of a line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var payload updateItemRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON payload", nil)
		return
	}
	if payload.Quantity == nil && payload.Selected == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "quantity or selected is required", nil)
		return
	}
	var qty int
	if payload.Quantity != nil {
		var err error
		if qty, err = CoerceQuantity(payload.Quantity); err != nil {
			h.writeError(w, err)
			return
		}
	}
	owner, store, ok := h.load(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "itemID")
	if payload.Quantity != nil {
		if _, err := store.Update(id, qty); err != nil {
			h.writeError(w, err)
			return
		}
	}
	if payload.Selected != nil {
		if err := store.SetSelected(id, *payload.Selected); err != nil {
			h.writeError(w, err)
			return
		}
	}
	h.save(w, r, owner, store, http.StatusOK)
}

// RemoveItem deletes a line. Unknown ids succeed without changes.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	owner, store, ok := h.load(w, r)
	if !ok {
		return
	}
	store.Remove(chi.URLParam(r, "itemID"))
	h.save(w, r, owner, store, http.StatusOK)
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	owner, store, ok := h.load(w, r)
	if !ok {
		return
	}
	store.Clear()
	h.save(w, r, owner, store, http.StatusOK)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (string, *Store, bool) {
	if h.Repo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart repository not configured", nil)
		return "", nil, false
	}
	owner, ok := common.UserID(r.Context())
	if !ok || owner == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return "", nil, false
	}
	store, err := h.Repo.Load(r.Context(), owner)
	if err != nil {
		h.Log.Error().Err(err).Str("owner", owner).Msg("load cart")
		h.writeError(w, err)
		return "", nil, false
	}
	return owner, store, true
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, owner string, store *Store, status int) {
	if err := h.Repo.Save(r.Context(), owner, store); err != nil {
		h.Log.Error().Err(err).Str("owner", owner).Msg("save cart")
		h.writeError(w, err)
		return
	}
	common.Data(w, status, NewView(store))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case common.IsAppError(err):
		common.WriteError(w, err, http.StatusInternalServerError)
	case errors.Is(err, ErrInvalidQuantity):
		common.JSONError(w, http.StatusBadRequest, "INVALID_QUANTITY", "quantity must be a positive whole number", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrLineNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart item not found", nil)
	case errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to update cart", nil)
	}
}

func lineFromPrice(p catalog.Price, qty int) Line {
	return Line{
		ProductID:       p.ProductID,
		VariantID:       p.VariantID,
		Quantity:        qty,
		UnitPrice:       p.UnitPrice,
		ShippingUnitFee: p.ShippingFeePerUnit,
		MOQ:             p.MOQ,
		Version:         p.Version,
		StockQuantity:   p.StockQuantity,
		Name:            p.Name,
		ImageURL:        p.ImageURL,
		SellerID:        p.SellerID,
		SellerName:      p.SellerName,
	}
}
