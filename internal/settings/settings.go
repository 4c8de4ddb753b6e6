// Package settings holds the per-tenant pricing configuration: the tax rate,
// the flat shipping fee and the display currency.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/warung-ops/backend-warung/internal/pricing"
	"github.com/warung-ops/backend-warung/internal/tenant"
)

// ErrStoreUnavailable indicates the settings store dependency is not configured.
var ErrStoreUnavailable = errors.New("settings: store unavailable")

// Settings is the tenant's pricing configuration. Tax is expressed in basis
// points (500 = 5%), shipping as a flat amount added to every delivery order.
type Settings struct {
	TaxBps       int32         `json:"taxBps"`
	ShippingFlat pricing.Money `json:"shippingFlat"`
	Currency     string        `json:"currency"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Defaults apply to tenants that never saved settings.
func Defaults() Settings {
	return Settings{TaxBps: 0, ShippingFlat: 0, Currency: "IDR"}
}

// Store persists settings, one row per tenant.
type Store struct {
	Pool  *pgxpool.Pool
	Cache *redis.Client
	TTL   time.Duration
}

func cacheKey(tenantID string) string {
	return tenant.PrefixKey(tenantID, "settings")
}

// Get returns the tenant's settings, falling back to defaults when no row
// exists. Served from Redis when warm.
func (s *Store) Get(ctx context.Context) (Settings, error) {
	if s == nil || s.Pool == nil {
		return Settings{}, ErrStoreUnavailable
	}
	tid, ok := tenant.From(ctx)
	if !ok {
		return Settings{}, errors.New("settings: tenant missing")
	}
	if s.Cache != nil {
		if data, err := s.Cache.Get(ctx, cacheKey(tid)).Bytes(); err == nil {
			var cached Settings
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}
	var out Settings
	row := s.Pool.QueryRow(ctx, `SELECT tax_bps, shipping_flat, currency, updated_at FROM pricing_settings WHERE tenant_id = $1`, tid)
	if err := row.Scan(&out.TaxBps, &out.ShippingFlat, &out.Currency, &out.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Defaults(), nil
		}
		return Settings{}, err
	}
	s.fill(ctx, tid, out)
	return out, nil
}

// Put upserts the tenant's settings and refreshes the cache.
func (s *Store) Put(ctx context.Context, in Settings) (Settings, error) {
	if s == nil || s.Pool == nil {
		return Settings{}, ErrStoreUnavailable
	}
	tid, ok := tenant.From(ctx)
	if !ok {
		return Settings{}, errors.New("settings: tenant missing")
	}
	if in.Currency == "" {
		in.Currency = Defaults().Currency
	}
	var out Settings
	row := s.Pool.QueryRow(ctx, `INSERT INTO pricing_settings (tenant_id, tax_bps, shipping_flat, currency)
VALUES ($1, $2, $3, $4)
ON CONFLICT (tenant_id) DO UPDATE SET tax_bps = $2, shipping_flat = $3, currency = $4, updated_at = now()
RETURNING tax_bps, shipping_flat, currency, updated_at`, tid, in.TaxBps, in.ShippingFlat, in.Currency)
	if err := row.Scan(&out.TaxBps, &out.ShippingFlat, &out.Currency, &out.UpdatedAt); err != nil {
		return Settings{}, err
	}
	s.fill(ctx, tid, out)
	return out, nil
}

func (s *Store) fill(ctx context.Context, tenantID string, v Settings) {
	if s.Cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	_ = s.Cache.Set(ctx, cacheKey(tenantID), data, ttl).Err()
}
