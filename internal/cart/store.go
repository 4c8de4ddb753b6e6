package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warung-ops/backend-warung/internal/pricing"
	"github.com/warung-ops/backend-warung/internal/tenant"
)

// ErrStoreUnavailable indicates the cart store dependency is not configured.
var ErrStoreUnavailable = errors.New("cart: store unavailable")

// Item is a cart line with the unit price snapshotted at add time.
type Item struct {
	ProductID uuid.UUID     `json:"productId"`
	Name      string        `json:"name"`
	Category  string        `json:"category"`
	UnitPrice pricing.Money `json:"unitPrice"`
	Qty       int32         `json:"qty"`
}

// Cart groups a customer's pending items, keyed by owner (user ID or an
// anonymous cart key supplied by the client).
type Cart struct {
	ID        uuid.UUID `json:"id"`
	OwnerKey  string    `json:"-"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store provides tenant-scoped cart persistence.
type Store struct {
	Pool *pgxpool.Pool
}

func tenantFrom(ctx context.Context) (string, error) {
	tid, ok := tenant.From(ctx)
	if !ok {
		return "", errors.New("cart: tenant missing")
	}
	return tid, nil
}

// GetOrCreate fetches the owner's cart, creating an empty one when absent.
func (s *Store) GetOrCreate(ctx context.Context, ownerKey string) (Cart, error) {
	if s == nil || s.Pool == nil {
		return Cart{}, ErrStoreUnavailable
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Cart{}, err
	}
	var c Cart
	c.OwnerKey = ownerKey
	row := s.Pool.QueryRow(ctx, `INSERT INTO carts (tenant_id, owner_key)
VALUES ($1, $2)
ON CONFLICT (tenant_id, owner_key) DO UPDATE SET updated_at = now()
RETURNING id, updated_at`, tid, ownerKey)
	if err := row.Scan(&c.ID, &c.UpdatedAt); err != nil {
		return Cart{}, err
	}
	items, err := s.listItems(ctx, c.ID)
	if err != nil {
		return Cart{}, err
	}
	c.Items = items
	return c, nil
}

func (s *Store) listItems(ctx context.Context, cartID uuid.UUID) ([]Item, error) {
	rows, err := s.Pool.Query(ctx, `SELECT product_id, name, category, unit_price, qty
FROM cart_items WHERE cart_id = $1 ORDER BY added_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Category, &it.UnitPrice, &it.Qty); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpsertItem adds an item or, when the product is already in the cart, adds to
// its quantity. The price snapshot is kept from the first add.
func (s *Store) UpsertItem(ctx context.Context, cartID uuid.UUID, it Item) error {
	if s == nil || s.Pool == nil {
		return ErrStoreUnavailable
	}
	_, err := s.Pool.Exec(ctx, `INSERT INTO cart_items (cart_id, product_id, name, category, unit_price, qty)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (cart_id, product_id) DO UPDATE SET qty = cart_items.qty + $6`, cartID, it.ProductID, it.Name, it.Category, it.UnitPrice, it.Qty)
	return err
}

// SetQty replaces an item's quantity; zero removes it.
func (s *Store) SetQty(ctx context.Context, cartID, productID uuid.UUID, qty int32) error {
	if s == nil || s.Pool == nil {
		return ErrStoreUnavailable
	}
	if qty <= 0 {
		return s.RemoveItem(ctx, cartID, productID)
	}
	tag, err := s.Pool.Exec(ctx, `UPDATE cart_items SET qty = $3 WHERE cart_id = $1 AND product_id = $2`, cartID, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// RemoveItem deletes one line from the cart.
func (s *Store) RemoveItem(ctx context.Context, cartID, productID uuid.UUID) error {
	if s == nil || s.Pool == nil {
		return ErrStoreUnavailable
	}
	tag, err := s.Pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Clear removes every item, keeping the cart row. Called after checkout.
func (s *Store) Clear(ctx context.Context, cartID uuid.UUID) error {
	if s == nil || s.Pool == nil {
		return ErrStoreUnavailable
	}
	_, err := s.Pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}
