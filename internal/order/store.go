package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warung-ops/backend-warung/internal/pricing"
	"github.com/warung-ops/backend-warung/internal/tenant"
)

// ErrStoreUnavailable indicates the order store dependency is not configured.
var ErrStoreUnavailable = errors.New("order: store unavailable")

// Store provides tenant-scoped order persistence. Order and items are written
// in one transaction so no partial order is ever visible.
type Store struct {
	Pool *pgxpool.Pool
}

const orderColumns = `id, owner_key, status, subtotal, tax_bps, tax, shipping, coupon_code, coupon_discount, auto_discount, total_discount, total, applied_promos, coupon_id, shipping_details, payment_details, created_at, updated_at`

func tenantFrom(ctx context.Context) (string, error) {
	tid, ok := tenant.From(ctx)
	if !ok {
		return "", errors.New("order: tenant missing")
	}
	return tid, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		promos []byte
	)
	if err := row.Scan(&o.ID, &o.OwnerKey, &o.Status,
		&o.Breakdown.Subtotal, &o.Breakdown.TaxBps, &o.Breakdown.Tax, &o.Breakdown.Shipping,
		&o.Breakdown.CouponCode, &o.Breakdown.CouponDiscount, &o.Breakdown.AutoDiscount,
		&o.Breakdown.TotalDiscount, &o.Breakdown.Total, &promos,
		&o.CouponID, &o.Shipping, &o.Payment, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	if len(promos) > 0 {
		if err := json.Unmarshal(promos, &o.Breakdown.AppliedPromos); err != nil {
			return Order{}, fmt.Errorf("decode applied promos: %w", err)
		}
	}
	return o, nil
}

func (s *Store) loadItems(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, orderID uuid.UUID) ([]pricing.LineItem, error) {
	rows, err := q.Query(ctx, `SELECT product_id, name, category, qty, unit_price
FROM order_items WHERE order_id = $1 ORDER BY position`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []pricing.LineItem{}
	for rows.Next() {
		var it pricing.LineItem
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Category, &it.Qty, &it.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []pricing.LineItem) error {
	for i, it := range items {
		if _, err := tx.Exec(ctx, `INSERT INTO order_items (order_id, position, product_id, name, category, qty, unit_price)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, orderID, i, it.ProductID, it.Name, it.Category, it.Qty, it.UnitPrice); err != nil {
			return err
		}
	}
	return nil
}

func breakdownArgs(b pricing.Breakdown) ([]any, error) {
	promos, err := json.Marshal(b.AppliedPromos)
	if err != nil {
		return nil, err
	}
	return []any{b.Subtotal, b.TaxBps, b.Tax, b.Shipping, b.CouponCode, b.CouponDiscount,
		b.AutoDiscount, b.TotalDiscount, b.Total, promos}, nil
}

// Create persists the order and its items atomically and returns the stored row.
func (s *Store) Create(ctx context.Context, o Order) (Order, error) {
	if s == nil || s.Pool == nil {
		return Order{}, ErrStoreUnavailable
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Order{}, err
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback(ctx)

	bargs, err := breakdownArgs(o.Breakdown)
	if err != nil {
		return Order{}, err
	}
	args := append([]any{tid, o.OwnerKey, string(o.Status)}, bargs...)
	args = append(args, o.CouponID, o.Shipping, o.Payment)
	row := tx.QueryRow(ctx, `INSERT INTO orders
(tenant_id, owner_key, status, subtotal, tax_bps, tax, shipping, coupon_code, coupon_discount, auto_discount, total_discount, total, applied_promos, coupon_id, shipping_details, payment_details)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING `+orderColumns, args...)
	stored, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	if err := insertItems(ctx, tx, stored.ID, o.Items); err != nil {
		return Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	stored.Items = o.Items
	return stored, nil
}

// Get fetches one order with its items.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	if s == nil || s.Pool == nil {
		return Order{}, ErrStoreUnavailable
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Order{}, err
	}
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 AND id = $2`, tid, id)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	items, err := s.loadItems(ctx, s.Pool, o.ID)
	if err != nil {
		return Order{}, err
	}
	o.Items = items
	return o, nil
}

// List returns orders, optionally filtered by owner and status, newest first.
func (s *Store) List(ctx context.Context, ownerKey string, status Status, limit, offset int) ([]Order, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+orderColumns+` FROM orders
WHERE tenant_id = $1
  AND ($2 = '' OR owner_key = $2)
  AND ($3 = '' OR status = $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5`, tid, ownerKey, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := s.loadItems(ctx, s.Pool, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

// ReplaceItems swaps the order's line items and, when breakdown is non-nil,
// its pricing columns, in one transaction. A nil breakdown leaves the stored
// pricing block untouched, which is how fulfilled-order edits stay frozen.
func (s *Store) ReplaceItems(ctx context.Context, id uuid.UUID, items []pricing.LineItem, breakdown *pricing.Breakdown, couponID *uuid.UUID) (Order, error) {
	if s == nil || s.Pool == nil {
		return Order{}, ErrStoreUnavailable
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Order{}, err
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback(ctx)

	var row pgx.Row
	if breakdown != nil {
		bargs, err := breakdownArgs(*breakdown)
		if err != nil {
			return Order{}, err
		}
		args := append([]any{tid, id}, bargs...)
		args = append(args, couponID)
		row = tx.QueryRow(ctx, `UPDATE orders SET
subtotal = $3, tax_bps = $4, tax = $5, shipping = $6, coupon_code = $7, coupon_discount = $8,
auto_discount = $9, total_discount = $10, total = $11, applied_promos = $12, coupon_id = $13,
updated_at = now()
WHERE tenant_id = $1 AND id = $2
RETURNING `+orderColumns, args...)
	} else {
		row = tx.QueryRow(ctx, `UPDATE orders SET updated_at = now()
WHERE tenant_id = $1 AND id = $2
RETURNING `+orderColumns, tid, id)
	}
	stored, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return Order{}, err
	}
	if err := insertItems(ctx, tx, id, items); err != nil {
		return Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	stored.Items = items
	return stored, nil
}

// UpdateStatus moves the order to the given status.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (Order, error) {
	if s == nil || s.Pool == nil {
		return Order{}, ErrStoreUnavailable
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Order{}, err
	}
	row := s.Pool.QueryRow(ctx, `UPDATE orders SET status = $3, updated_at = now()
WHERE tenant_id = $1 AND id = $2
RETURNING `+orderColumns, tid, id, string(status))
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	items, err := s.loadItems(ctx, s.Pool, o.ID)
	if err != nil {
		return Order{}, err
	}
	o.Items = items
	return o, nil
}
