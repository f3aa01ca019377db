package pendingorder

import (
	"context"
	"errors"
	"net/http"

	"github.com/noah-isme/agromarket/internal/common"
	"github.com/noah-isme/agromarket/internal/identity"
)

// RetailerLookup resolves the retailer owning the pending order.
type RetailerLookup interface {
	CurrentRetailer(ctx context.Context) (identity.Retailer, error)
}

// Handler exposes the pending order of the current retailer.
type Handler struct {
	Store     Store
	Retailers RetailerLookup
}

// Get handles GET /checkout/pending.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil || h.Retailers == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pending order lookup not configured", nil)
		return
	}
	retailer, err := h.Retailers.CurrentRetailer(r.Context())
	if err != nil {
		if errors.Is(err, identity.ErrUnauthenticated) || errors.Is(err, identity.ErrNoRetailer) {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "retailer account required", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to resolve retailer", nil)
		return
	}
	rec, err := h.Store.Load(r.Context(), retailer.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, CodeNoPendingOrder, "no pending order", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load pending order", nil)
		return
	}
	common.Data(w, http.StatusOK, rec)
}
