package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool used by PostgresStore.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore persists orders and their items in one transaction.
type PostgresStore struct {
	DB DB
}

const insertOrderSQL = `
INSERT INTO orders (
    id, name, retailer_id, status, amount, product_total, shipping_fee,
    delivery_option, delivery_time_window, delivery_note, delivery_address,
    idempotency_key, request_fingerprint, created_at
) VALUES ($1, $2, $3::uuid, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13, $14)`

const insertOrderItemSQL = `
INSERT INTO order_items (
    order_id, position, product_id, variant_id, name, seller_id, quantity,
    unit_price, shipping_fee_per_unit, product_total, shipping_fee, line_total
) VALUES ($1, $2, $3::uuid, $4::uuid, $5, NULLIF($6, '')::uuid, $7, $8, $9, $10, $11, $12)`

const selectOrderSQL = `
SELECT id, name, retailer_id::text, status, amount, product_total, shipping_fee,
       delivery_option, delivery_time_window, delivery_note, delivery_address,
       COALESCE(idempotency_key, ''), request_fingerprint, created_at
FROM orders`

const selectItemsSQL = `
SELECT product_id::text, variant_id::text, name, COALESCE(seller_id::text, ''), quantity,
       unit_price, shipping_fee_per_unit, product_total, shipping_fee, line_total
FROM order_items
WHERE order_id = $1
ORDER BY position`

// Create inserts the order and its items. A unique violation on the
// idempotency key is reported as ErrDuplicateOrder.
func (s PostgresStore) Create(ctx context.Context, o Order) error {
	if s.DB == nil {
		return errors.New("checkout: database not configured")
	}
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.Name, o.RetailerID, o.Status, o.Amount, o.ProductTotal, o.ShippingFee,
		o.Delivery.Option, o.Delivery.TimeWindow, o.Delivery.Note, o.Delivery.Address,
		o.IdempotencyKey, o.RequestFingerprint, o.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}
	for i, it := range o.Items {
		_, err := tx.Exec(ctx, insertOrderItemSQL,
			o.ID, i, it.ProductID, it.VariantID, it.Name, it.SellerID, it.Quantity,
			it.UnitPrice, it.ShippingFeePerUnit, it.ProductTotal, it.ShippingFee, it.LineTotal,
		)
		if err != nil {
			return fmt.Errorf("insert order item %d: %w", i, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// FindByIdempotencyKey returns the retailer's order created under key.
func (s PostgresStore) FindByIdempotencyKey(ctx context.Context, retailerID, key string) (Order, error) {
	return s.findOne(ctx, selectOrderSQL+` WHERE retailer_id = $1::uuid AND idempotency_key = $2`, retailerID, key)
}

// FindByID returns the retailer's order with the given id.
func (s PostgresStore) FindByID(ctx context.Context, retailerID, orderID string) (Order, error) {
	return s.findOne(ctx, selectOrderSQL+` WHERE retailer_id = $1::uuid AND id = $2`, retailerID, orderID)
}

func (s PostgresStore) findOne(ctx context.Context, sql string, args ...any) (Order, error) {
	if s.DB == nil {
		return Order{}, errors.New("checkout: database not configured")
	}
	var o Order
	err := s.DB.QueryRow(ctx, sql, args...).Scan(
		&o.ID, &o.Name, &o.RetailerID, &o.Status, &o.Amount, &o.ProductTotal, &o.ShippingFee,
		&o.Delivery.Option, &o.Delivery.TimeWindow, &o.Delivery.Note, &o.Delivery.Address,
		&o.IdempotencyKey, &o.RequestFingerprint, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("select order: %w", err)
	}
	rows, err := s.DB.Query(ctx, selectItemsSQL, o.ID)
	if err != nil {
		return Order{}, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it ValidatedItem
		if err := rows.Scan(
			&it.ProductID, &it.VariantID, &it.Name, &it.SellerID, &it.Quantity,
			&it.UnitPrice, &it.ShippingFeePerUnit, &it.ProductTotal, &it.ShippingFee, &it.LineTotal,
		); err != nil {
			return Order{}, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return Order{}, fmt.Errorf("iterate order items: %w", err)
	}
	return o, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
