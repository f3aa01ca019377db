package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a product or variant does not exist or is inactive.
var ErrNotFound = errors.New("catalog: product not found")

// Price is the authoritative snapshot of a purchasable product or variant.
type Price struct {
	ProductID          string  `json:"productId"`
	VariantID          *string `json:"variantId,omitempty"`
	Name               string  `json:"name"`
	ImageURL           string  `json:"imageUrl,omitempty"`
	SellerID           string  `json:"sellerId"`
	SellerName         string  `json:"sellerName"`
	UnitPrice          int64   `json:"unitPrice"`
	ShippingFeePerUnit int64   `json:"shippingFeePerUnit"`
	StockQuantity      int     `json:"stockQuantity"`
	MOQ                int     `json:"moq"`
	Version            int64   `json:"version"`
}

// Querier is the subset of pgxpool.Pool used by PostgresPrices.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresPrices reads product pricing straight from Postgres.
type PostgresPrices struct {
	DB Querier
}

const priceSQL = `
SELECT p.id::text,
       v.id::text,
       CASE WHEN v.id IS NULL THEN p.name ELSE p.name || ' - ' || v.name END,
       COALESCE(p.image_url, ''),
       w.id::text,
       w.business_name,
       COALESCE(v.unit_price, p.unit_price),
       p.shipping_fee_per_unit,
       COALESCE(v.stock_quantity, p.stock_quantity),
       p.moq,
       GREATEST(p.version, COALESCE(v.version, 0))
FROM products p
JOIN wholesalers w ON w.id = p.wholesaler_id
LEFT JOIN product_variants v ON v.product_id = p.id AND v.id = $2::uuid
WHERE p.id = $1::uuid AND p.is_active`

// Lookup returns the current price snapshot for the product and optional variant.
func (p PostgresPrices) Lookup(ctx context.Context, productID string, variantID *string) (Price, error) {
	if p.DB == nil {
		return Price{}, errors.New("catalog: database not configured")
	}
	pid, err := uuid.Parse(strings.TrimSpace(productID))
	if err != nil {
		return Price{}, fmt.Errorf("product %q: %w", productID, ErrNotFound)
	}
	var vid *string
	if variantID != nil && strings.TrimSpace(*variantID) != "" {
		parsed, err := uuid.Parse(strings.TrimSpace(*variantID))
		if err != nil {
			return Price{}, fmt.Errorf("variant %q: %w", *variantID, ErrNotFound)
		}
		s := parsed.String()
		vid = &s
	}

	var out Price
	err = p.DB.QueryRow(ctx, priceSQL, pid.String(), vid).Scan(
		&out.ProductID,
		&out.VariantID,
		&out.Name,
		&out.ImageURL,
		&out.SellerID,
		&out.SellerName,
		&out.UnitPrice,
		&out.ShippingFeePerUnit,
		&out.StockQuantity,
		&out.MOQ,
		&out.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Price{}, fmt.Errorf("product %s: %w", productID, ErrNotFound)
		}
		return Price{}, fmt.Errorf("lookup price: %w", err)
	}
	if vid != nil && out.VariantID == nil {
		return Price{}, fmt.Errorf("variant %s of product %s: %w", *vid, productID, ErrNotFound)
	}
	return out, nil
}
