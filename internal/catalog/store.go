package catalog

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

// ErrStoreUnavailable indicates the catalog store dependency is not configured.
var ErrStoreUnavailable = errors.New("catalog: store unavailable")

// Product is a sellable item in the tenant's menu.
type Product struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Category    string        `json:"category"`
	Price       pricing.Money `json:"price"`
	CostPrice   pricing.Money `json:"costPrice,omitempty"`
	ImageKey    string        `json:"imageKey,omitempty"`
	Available   bool          `json:"available"`
	Stock       int32         `json:"stock"`
	TrackStock  bool          `json:"trackStock"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// ListFilter narrows product listings.
type ListFilter struct {
	Query         string
	Category      string
	OnlyAvailable bool
	Limit         int
	Offset        int
}

// Store provides tenant-scoped product persistence.
type Store struct {
	Pool *pgxpool.Pool
}

const productColumns = `id, name, description, category, price, cost_price, image_key, available, stock, track_stock, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Price, &p.CostPrice,
		&p.ImageKey, &p.Available, &p.Stock, &p.TrackStock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func tenantFrom(ctx context.Context) (string, error) {
	tid, ok := tenant.From(ctx)
	if !ok {
		return "", errors.New("catalog: tenant missing")
	}
	return tid, nil
}

// Get fetches one product by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	if s == nil || s.Pool == nil {
		return Product{}, ErrStoreUnavailable
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Product{}, err
	}
	row := s.Pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE tenant_id = $1 AND id = $2`, tid, id)
	return scanProduct(row)
}

// GetMany fetches a batch of products by ID, keyed for lookup.
func (s *Store) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return map[uuid.UUID]Product{}, nil
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE tenant_id = $1 AND id = ANY($2)`, tid, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// List returns products matching the filter, name-ordered.
func (s *Store) List(ctx context.Context, f ListFilter) ([]Product, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+productColumns+` FROM products
WHERE tenant_id = $1
  AND ($2 = '' OR name ILIKE '%' || $2 || '%')
  AND ($3 = '' OR category = $3)
  AND (NOT $4::bool OR available)
ORDER BY name
LIMIT $5 OFFSET $6`, tid, f.Query, f.Category, f.OnlyAvailable, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListCategories returns the distinct categories in use by the tenant.
func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, `SELECT DISTINCT category FROM products WHERE tenant_id = $1 AND category <> '' ORDER BY category`, tid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create inserts a product and returns the stored row.
func (s *Store) Create(ctx context.Context, p Product) (Product, error) {
	if s == nil || s.Pool == nil {
		return Product{}, ErrStoreUnavailable
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Product{}, err
	}
	row := s.Pool.QueryRow(ctx, `INSERT INTO products
(tenant_id, name, description, category, price, cost_price, image_key, available, stock, track_stock)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING `+productColumns,
		tid, p.Name, p.Description, p.Category, p.Price, p.CostPrice, p.ImageKey, p.Available, p.Stock, p.TrackStock)
	return scanProduct(row)
}

// Update replaces the mutable fields of a product.
func (s *Store) Update(ctx context.Context, p Product) (Product, error) {
	if s == nil || s.Pool == nil {
		return Product{}, ErrStoreUnavailable
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Product{}, err
	}
	row := s.Pool.QueryRow(ctx, `UPDATE products SET
name = $3, description = $4, category = $5, price = $6, cost_price = $7, image_key = $8,
available = $9, stock = $10, track_stock = $11, updated_at = now()
WHERE tenant_id = $1 AND id = $2
RETURNING `+productColumns,
		tid, p.ID, p.Name, p.Description, p.Category, p.Price, p.CostPrice, p.ImageKey, p.Available, p.Stock, p.TrackStock)
	return scanProduct(row)
}

// Delete removes a product by ID.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if s == nil || s.Pool == nil {
		return ErrStoreUnavailable
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return err
	}
	tag, err := s.Pool.Exec(ctx, `DELETE FROM products WHERE tenant_id = $1 AND id = $2`, tid, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// AdjustStock shifts a tracked product's stock level by delta (negative for a
// sale). Untracked products are left alone.
func (s *Store) AdjustStock(ctx context.Context, id uuid.UUID, delta int32) error {
	if s == nil || s.Pool == nil {
		return ErrStoreUnavailable
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `UPDATE products SET stock = stock + $3, updated_at = now()
WHERE tenant_id = $1 AND id = $2 AND track_stock`, tid, id, delta)
	return err
}
