package coupon

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warung-ops/backend-warung/internal/tenant"
)

// ErrStoreUnavailable indicates the coupon store dependency is not configured.
var ErrStoreUnavailable = errors.New("coupon: store unavailable")

// Store provides tenant-scoped persistence for coupons.
type Store struct {
	Pool *pgxpool.Pool
}

const couponColumns = `id, code, kind, value, percent_bps, min_order, max_discount, valid_from, valid_to, usage_limit, used_count, enabled`

func scanCoupon(row pgx.Row) (Coupon, error) {
	var c Coupon
	var kind string
	var validFrom, validTo *time.Time
	if err := row.Scan(&c.ID, &c.Code, &kind, &c.Value, &c.PercentBps, &c.MinOrder, &c.MaxDiscount, &validFrom, &validTo, &c.UsageLimit, &c.UsedCount, &c.Enabled); err != nil {
		return Coupon{}, err
	}
	c.Kind = Kind(kind)
	c.ValidFrom = validFrom
	c.ValidTo = validTo
	return c, nil
}

// GetByCode fetches a coupon by normalized code for the tenant in context.
func (s *Store) GetByCode(ctx context.Context, code string) (Coupon, error) {
	if s == nil || s.Pool == nil {
		return Coupon{}, ErrStoreUnavailable
	}
	tid, ok := tenant.From(ctx)
	if !ok {
		return Coupon{}, errors.New("coupon: tenant missing")
	}
	row := s.Pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE tenant_id = $1 AND code = $2`, tid, NormalizeCode(code))
	return scanCoupon(row)
}

// List returns the tenant's coupons ordered by code.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Coupon, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	tid, ok := tenant.From(ctx)
	if !ok {
		return nil, errors.New("coupon: tenant missing")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+couponColumns+` FROM coupons WHERE tenant_id = $1 ORDER BY code LIMIT $2 OFFSET $3`, tid, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Coupon, 0, limit)
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create inserts a coupon and returns the stored row.
func (s *Store) Create(ctx context.Context, c Coupon) (Coupon, error) {
	if s == nil || s.Pool == nil {
		return Coupon{}, ErrStoreUnavailable
	}
	tid, ok := tenant.From(ctx)
	if !ok {
		return Coupon{}, errors.New("coupon: tenant missing")
	}
	row := s.Pool.QueryRow(ctx, `INSERT INTO coupons (tenant_id, code, kind, value, percent_bps, min_order, max_discount, valid_from, valid_to, usage_limit, enabled)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING `+couponColumns,
		tid, NormalizeCode(c.Code), string(c.Kind), c.Value, c.PercentBps, c.MinOrder, c.MaxDiscount, c.ValidFrom, c.ValidTo, c.UsageLimit, c.Enabled)
	return scanCoupon(row)
}

// Update replaces the mutable fields of a coupon identified by code.
func (s *Store) Update(ctx context.Context, c Coupon) (Coupon, error) {
	if s == nil || s.Pool == nil {
		return Coupon{}, ErrStoreUnavailable
	}
	tid, ok := tenant.From(ctx)
	if !ok {
		return Coupon{}, errors.New("coupon: tenant missing")
	}
	row := s.Pool.QueryRow(ctx, `UPDATE coupons SET kind = $3, value = $4, percent_bps = $5, min_order = $6, max_discount = $7, valid_from = $8, valid_to = $9, usage_limit = $10, enabled = $11, updated_at = now()
WHERE tenant_id = $1 AND code = $2
RETURNING `+couponColumns,
		tid, NormalizeCode(c.Code), string(c.Kind), c.Value, c.PercentBps, c.MinOrder, c.MaxDiscount, c.ValidFrom, c.ValidTo, c.UsageLimit, c.Enabled)
	return scanCoupon(row)
}

// Delete removes a coupon by code.
func (s *Store) Delete(ctx context.Context, code string) error {
	if s == nil || s.Pool == nil {
		return ErrStoreUnavailable
	}
	tid, ok := tenant.From(ctx)
	if !ok {
		return errors.New("coupon: tenant missing")
	}
	tag, err := s.Pool.Exec(ctx, `DELETE FROM coupons WHERE tenant_id = $1 AND code = $2`, tid, NormalizeCode(code))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// IncrementUsage bumps the redemption counter and flips enabled off once the
// cap is reached. The disable is a side effect of redemption, not of date
// expiry; date expiry stays dynamic. The read-check-increment across the
// whole checkout is not atomic, so concurrent checkouts can overshoot the
// cap by one (kept as observed; see DESIGN.md).
func (s *Store) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	if s == nil || s.Pool == nil {
		return ErrStoreUnavailable
	}
	_, err := s.Pool.Exec(ctx, `UPDATE coupons
SET used_count = used_count + 1,
    enabled = CASE WHEN usage_limit > 0 AND used_count + 1 >= usage_limit THEN false ELSE enabled END,
    updated_at = now()
WHERE id = $1`, id)
	return err
}
