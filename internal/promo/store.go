package promo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warung-ops/backend-warung/internal/tenant"
)

// ErrStoreUnavailable indicates the promo store dependency is not configured.
var ErrStoreUnavailable = errors.New("promo: store unavailable")

// Store provides tenant-scoped persistence for automatic discount rules.
type Store struct {
	Pool *pgxpool.Pool
}

const ruleColumns = `id, name, kind, percent_bps, fixed_amount, bulk_threshold, bulk_bps, buy_qty, get_qty, min_order, max_discount, valid_from, valid_to, usage_limit, used_count, enabled, product_ids, categories`

func scanRule(row pgx.Row) (Rule, error) {
	var (
		r          Rule
		kind       string
		percentBps int32
		fixed      int64
		threshold  int
		bulkBps    int32
		buyQty     int
		getQty     int
		validFrom  *time.Time
		validTo    *time.Time
		productIDs []uuid.UUID
		categories []string
	)
	if err := row.Scan(&r.ID, &r.Name, &kind, &percentBps, &fixed, &threshold, &bulkBps, &buyQty, &getQty,
		&r.MinOrder, &r.MaxDiscount, &validFrom, &validTo, &r.UsageLimit, &r.UsedCount, &r.Enabled,
		&productIDs, &categories); err != nil {
		return Rule{}, err
	}
	r.Kind = Kind(kind)
	r.ValidFrom = validFrom
	r.ValidTo = validTo
	r.ProductIDs = productIDs
	r.Categories = categories
	switch r.Kind {
	case KindPercent:
		r.Cond = PercentCond{Bps: percentBps}
	case KindFixed:
		r.Cond = FixedCond{Amount: fixed}
	case KindBulk:
		r.Cond = BulkCond{Threshold: threshold, Bps: bulkBps}
	case KindBuyXGetY:
		r.Cond = BuyXGetYCond{BuyQty: buyQty, GetQty: getQty}
	}
	return r, nil
}

func condColumns(r Rule) (percentBps int32, fixed int64, threshold int, bulkBps int32, buyQty, getQty int) {
	switch cond := r.Cond.(type) {
	case PercentCond:
		percentBps = cond.Bps
	case FixedCond:
		fixed = cond.Amount
	case BulkCond:
		threshold = cond.Threshold
		bulkBps = cond.Bps
	case BuyXGetYCond:
		buyQty = cond.BuyQty
		getQty = cond.GetQty
	}
	return
}

// ListActive returns every enabled rule for the tenant. Window, cap and
// minimum-order checks stay dynamic in the resolver.
func (s *Store) ListActive(ctx context.Context) ([]Rule, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	tid, ok := tenant.From(ctx)
	if !ok {
		return nil, errors.New("promo: tenant missing")
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+ruleColumns+` FROM promo_rules WHERE tenant_id = $1 AND enabled ORDER BY id`, tid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// List returns all rules for the tenant, enabled or not.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Rule, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	tid, ok := tenant.From(ctx)
	if !ok {
		return nil, errors.New("promo: tenant missing")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+ruleColumns+` FROM promo_rules WHERE tenant_id = $1 ORDER BY name LIMIT $2 OFFSET $3`, tid, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Rule, 0, limit)
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get fetches a single rule by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Rule, error) {
	if s == nil || s.Pool == nil {
		return Rule{}, ErrStoreUnavailable
	}
	tid, ok := tenant.From(ctx)
	if !ok {
		return Rule{}, errors.New("promo: tenant missing")
	}
	row := s.Pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM promo_rules WHERE tenant_id = $1 AND id = $2`, tid, id)
	return scanRule(row)
}

// Create inserts a rule and returns the stored row.
func (s *Store) Create(ctx context.Context, r Rule) (Rule, error) {
	if s == nil || s.Pool == nil {
		return Rule{}, ErrStoreUnavailable
	}
	tid, ok := tenant.From(ctx)
	if !ok {
		return Rule{}, errors.New("promo: tenant missing")
	}
	percentBps, fixed, threshold, bulkBps, buyQty, getQty := condColumns(r)
	row := s.Pool.QueryRow(ctx, `INSERT INTO promo_rules
(tenant_id, name, kind, percent_bps, fixed_amount, bulk_threshold, bulk_bps, buy_qty, get_qty, min_order, max_discount, valid_from, valid_to, usage_limit, enabled, product_ids, categories)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
RETURNING `+ruleColumns,
		tid, r.Name, string(r.Kind), percentBps, fixed, threshold, bulkBps, buyQty, getQty,
		r.MinOrder, r.MaxDiscount, r.ValidFrom, r.ValidTo, r.UsageLimit, r.Enabled, r.ProductIDs, r.Categories)
	return scanRule(row)
}

// Update replaces the mutable fields of a rule.
func (s *Store) Update(ctx context.Context, r Rule) (Rule, error) {
	if s == nil || s.Pool == nil {
		return Rule{}, ErrStoreUnavailable
	}
	tid, ok := tenant.From(ctx)
	if !ok {
		return Rule{}, errors.New("promo: tenant missing")
	}
	percentBps, fixed, threshold, bulkBps, buyQty, getQty := condColumns(r)
	row := s.Pool.QueryRow(ctx, `UPDATE promo_rules SET
name = $3, kind = $4, percent_bps = $5, fixed_amount = $6, bulk_threshold = $7, bulk_bps = $8, buy_qty = $9, get_qty = $10,
min_order = $11, max_discount = $12, valid_from = $13, valid_to = $14, usage_limit = $15, enabled = $16, product_ids = $17, categories = $18,
updated_at = now()
WHERE tenant_id = $1 AND id = $2
RETURNING `+ruleColumns,
		tid, r.ID, r.Name, string(r.Kind), percentBps, fixed, threshold, bulkBps, buyQty, getQty,
		r.MinOrder, r.MaxDiscount, r.ValidFrom, r.ValidTo, r.UsageLimit, r.Enabled, r.ProductIDs, r.Categories)
	return scanRule(row)
}

// Delete removes a rule by ID.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if s == nil || s.Pool == nil {
		return ErrStoreUnavailable
	}
	tid, ok := tenant.From(ctx)
	if !ok {
		return errors.New("promo: tenant missing")
	}
	tag, err := s.Pool.Exec(ctx, `DELETE FROM promo_rules WHERE tenant_id = $1 AND id = $2`, tid, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// IncrementUsage bumps a rule's redemption counter, disabling it once the cap
// is hit. Same check-then-act caveat as coupons applies.
func (s *Store) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	if s == nil || s.Pool == nil {
		return ErrStoreUnavailable
	}
	_, err := s.Pool.Exec(ctx, `UPDATE promo_rules
SET used_count = used_count + 1,
    enabled = CASE WHEN usage_limit > 0 AND used_count + 1 >= usage_limit THEN false ELSE enabled END,
    updated_at = now()
WHERE id = $1`, id)
	return err
}
