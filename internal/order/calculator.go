package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/warung-ops/backend-warung/internal/catalog"
	"github.com/warung-ops/backend-warung/internal/common"
	"github.com/warung-ops/backend-warung/internal/coupon"
	"github.com/warung-ops/backend-warung/internal/pricing"
	"github.com/warung-ops/backend-warung/internal/promo"
	"github.com/warung-ops/backend-warung/internal/settings"
)

// Collaborator interfaces, narrow so tests can fake them without a database.

// PriceLookup resolves current unit prices for a batch of products.
type PriceLookup interface {
	Lookup(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error)
}

// SettingsProvider returns the tenant's tax and shipping configuration.
type SettingsProvider interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// CouponEvaluator resolves and redeems coupon codes.
type CouponEvaluator interface {
	Evaluate(ctx context.Context, code string, amount pricing.Money) (coupon.Applied, error)
	Redeem(ctx context.Context, id uuid.UUID) error
}

// PromoResolver resolves and commits automatic discounts.
type PromoResolver interface {
	Resolve(ctx context.Context, amount pricing.Money, totalQty int, items []promo.Item) ([]pricing.AppliedPromo, pricing.Money, error)
	Commit(ctx context.Context, applied []pricing.AppliedPromo) error
}

// ItemInput is the raw item reference a caller submits.
type ItemInput struct {
	ProductID uuid.UUID
	Qty       int
}

// QuoteOptions tune one calculator run.
type QuoteOptions struct {
	CouponCode string
	// Strict makes a failing coupon abort the whole quote. Previews leave it
	// false: the coupon simply contributes zero with a warning attached.
	Strict bool
	// SkipPromos suppresses automatic discounts. Used when re-pricing an
	// order that never had a discount, so a quantity edit cannot silently
	// pick up promotions that did not exist at checkout.
	SkipPromos bool
}

// Quote is the calculator's result: resolved line items, the assembled
// breakdown, and the coupon reference when one applied.
type Quote struct {
	Items         []pricing.LineItem
	Breakdown     pricing.Breakdown
	Coupon        *coupon.Applied
	CouponWarning string
}

// Calculator orchestrates product pricing, settings, the coupon resolver and
// the automatic discount resolver into one breakdown. It is the only
// component with business-rule sequencing.
type Calculator struct {
	Catalog  PriceLookup
	Settings SettingsProvider
	Coupons  CouponEvaluator
	Promos   PromoResolver
}

func invalidItem(msg string) error {
	return &common.AppError{Code: "INVALID_ITEM", Message: msg, HTTPStatus: http.StatusBadRequest}
}

// ResolveItems snapshots the current unit price of every input item.
func (c *Calculator) ResolveItems(ctx context.Context, inputs []ItemInput) ([]pricing.LineItem, error) {
	if len(inputs) == 0 {
		return nil, invalidItem("order requires at least one item")
	}
	ids := make([]uuid.UUID, 0, len(inputs))
	for _, in := range inputs {
		if in.ProductID == uuid.Nil {
			return nil, invalidItem("item missing product id")
		}
		if in.Qty < 1 {
			return nil, invalidItem("item quantity must be at least 1")
		}
		ids = append(ids, in.ProductID)
	}
	products, err := c.Catalog.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	items := make([]pricing.LineItem, 0, len(inputs))
	for _, in := range inputs {
		p := products[in.ProductID]
		items = append(items, pricing.LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Category:  p.Category,
			Qty:       in.Qty,
			UnitPrice: p.Price,
		})
	}
	return items, nil
}

// QuoteItems prices already-resolved line items. Order of operations: subtotal,
// tax, shipping, then the coupon against the pre-discount total, then
// automatic discounts against the post-coupon amount.
func (c *Calculator) QuoteItems(ctx context.Context, items []pricing.LineItem, opts QuoteOptions) (Quote, error) {
	if c == nil || c.Settings == nil {
		return Quote{}, errors.New("order: calculator not configured")
	}
	cfg, err := c.Settings.Get(ctx)
	if err != nil {
		return Quote{}, fmt.Errorf("load pricing settings: %w", err)
	}
	subtotal := pricing.Subtotal(items)
	tax := pricing.TaxAmount(subtotal, cfg.TaxBps)
	preDiscountTotal := subtotal + tax + cfg.ShippingFlat

	q := Quote{Items: items}
	var (
		couponCode     string
		couponDiscount pricing.Money
	)
	if opts.CouponCode != "" {
		if c.Coupons == nil {
			return Quote{}, errors.New("order: coupon evaluator not configured")
		}
		applied, err := c.Coupons.Evaluate(ctx, opts.CouponCode, preDiscountTotal)
		switch {
		case err == nil:
			q.Coupon = &applied
			couponCode = applied.Code
			couponDiscount = applied.Discount
		case opts.Strict:
			return Quote{}, err
		default:
			q.CouponWarning = err.Error()
		}
	}

	var promos []pricing.AppliedPromo
	if !opts.SkipPromos && c.Promos != nil {
		afterCoupon := preDiscountTotal - couponDiscount
		promoItems := make([]promo.Item, 0, len(items))
		for _, it := range items {
			promoItems = append(promoItems, promo.Item{ProductID: it.ProductID, Category: it.Category, Qty: it.Qty})
		}
		promos, _, err = c.Promos.Resolve(ctx, afterCoupon, pricing.TotalQty(items), promoItems)
		if err != nil {
			return Quote{}, fmt.Errorf("resolve automatic discounts: %w", err)
		}
	}

	q.Breakdown = pricing.Assemble(items, cfg.TaxBps, cfg.ShippingFlat, couponCode, couponDiscount, promos)
	return q, nil
}

// QuoteInputs resolves items then prices them.
func (c *Calculator) QuoteInputs(ctx context.Context, inputs []ItemInput, opts QuoteOptions) (Quote, error) {
	if c == nil || c.Catalog == nil {
		return Quote{}, errors.New("order: calculator not configured")
	}
	items, err := c.ResolveItems(ctx, inputs)
	if err != nil {
		return Quote{}, err
	}
	return c.QuoteItems(ctx, items, opts)
}

// CommitUsage increments usage counters for the coupon and every applied
// automatic discount. Runs after the order row is persisted; each write
// commits independently, there is no shared transaction with the order.
func (c *Calculator) CommitUsage(ctx context.Context, q Quote) error {
	var joined error
	if q.Coupon != nil && c.Coupons != nil {
		if err := c.Coupons.Redeem(ctx, q.Coupon.ID); err != nil {
			joined = errors.Join(joined, fmt.Errorf("redeem coupon: %w", err))
		}
	}
	if len(q.Breakdown.AppliedPromos) > 0 && c.Promos != nil {
		if err := c.Promos.Commit(ctx, q.Breakdown.AppliedPromos); err != nil {
			joined = errors.Join(joined, &common.AppError{
				Code:       "DISCOUNT_VALIDATION_FAILED",
				Message:    "failed to commit automatic discount usage",
				HTTPStatus: http.StatusConflict,
				Err:        err,
			})
		}
	}
	return joined
}
