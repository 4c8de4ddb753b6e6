package promo

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/warung-ops/backend-warung/internal/pricing"
)

// Kind enumerates the supported automatic discount kinds.
type Kind string

const (
	KindPercent  Kind = "percent"
	KindFixed    Kind = "fixed"
	KindBulk     Kind = "bulk"
	KindBuyXGetY Kind = "buy_x_get_y"
)

// Condition carries only the fields a kind's calculation needs, replacing the
// loosely-typed conditions bag of older schemas with a closed union.
type Condition interface {
	kind() Kind
}

// PercentCond discounts a share of the post-coupon amount.
type PercentCond struct {
	Bps int32 `json:"bps"`
}

// FixedCond discounts a flat amount.
type FixedCond struct {
	Amount pricing.Money `json:"amount"`
}

// BulkCond discounts a share of the amount once the cart quantity reaches the
// threshold.
type BulkCond struct {
	Threshold int   `json:"threshold"`
	Bps       int32 `json:"bps"`
}

// BuyXGetYCond is reserved: the computation is not defined yet and always
// yields zero. The quantities are stored so existing rules round-trip.
type BuyXGetYCond struct {
	BuyQty int `json:"buyQty"`
	GetQty int `json:"getQty"`
}

func (PercentCond) kind() Kind  { return KindPercent }
func (FixedCond) kind() Kind    { return KindFixed }
func (BulkCond) kind() Kind     { return KindBulk }
func (BuyXGetYCond) kind() Kind { return KindBuyXGetY }

// Rule is an automatic promotional discount. Unlike a coupon, many rules may
// apply to one order simultaneously.
type Rule struct {
	ID          uuid.UUID
	Name        string
	Kind        Kind
	Cond        Condition
	MinOrder    pricing.Money
	MaxDiscount pricing.Money
	ValidFrom   *time.Time
	ValidTo     *time.Time
	UsageLimit  int32
	UsedCount   int32
	Enabled     bool
	ProductIDs  []uuid.UUID
	Categories  []string
}

// Item is the slice of a cart the scoping checks look at.
type Item struct {
	ProductID uuid.UUID
	Category  string
	Qty       int
}

// Eligible reports whether the rule can apply at the given instant to the
// post-coupon amount, quantity and items. Scoped rules match when at least
// one item falls in the scope (OR across the scoped set).
func (r Rule) Eligible(now time.Time, amount pricing.Money, totalQty int, items []Item) bool {
	if !r.Enabled {
		return false
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return false
	}
	if r.UsageLimit > 0 && r.UsedCount >= r.UsageLimit {
		return false
	}
	if r.MinOrder > 0 && amount < r.MinOrder {
		return false
	}
	if bulk, ok := r.Cond.(BulkCond); ok && totalQty < bulk.Threshold {
		return false
	}
	return r.matchesScope(items)
}

func (r Rule) matchesScope(items []Item) bool {
	if len(r.ProductIDs) == 0 && len(r.Categories) == 0 {
		return true
	}
	for _, it := range items {
		for _, id := range r.ProductIDs {
			if it.ProductID == id {
				return true
			}
		}
		for _, cat := range r.Categories {
			if cat != "" && it.Category == cat {
				return true
			}
		}
	}
	return false
}

// Amount computes the rule's discount against the post-coupon amount,
// clamped individually to that amount. There is no cross-rule proration.
func (r Rule) Amount(amount pricing.Money) pricing.Money {
	if amount <= 0 {
		return 0
	}
	var discount pricing.Money
	switch cond := r.Cond.(type) {
	case PercentCond:
		discount = (amount * pricing.Money(cond.Bps)) / 10000
		if r.MaxDiscount > 0 && discount > r.MaxDiscount {
			discount = r.MaxDiscount
		}
	case FixedCond:
		discount = cond.Amount
	case BulkCond:
		discount = (amount * pricing.Money(cond.Bps)) / 10000
	case BuyXGetYCond:
		return 0
	default:
		return 0
	}
	if discount > amount {
		discount = amount
	}
	if discount < 0 {
		return 0
	}
	return discount
}

// Resolve evaluates every rule against the post-coupon amount A' and returns
// the qualifying ones, each with its computed amount, plus the sum. Every
// amount is computed independently against the same A'; the ordering (by rule
// ID) only fixes the sequence of the returned list.
func Resolve(rules []Rule, now time.Time, amount pricing.Money, totalQty int, items []Item) ([]pricing.AppliedPromo, pricing.Money) {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	var (
		applied []pricing.AppliedPromo
		total   pricing.Money
	)
	for _, r := range sorted {
		if !r.Eligible(now, amount, totalQty, items) {
			continue
		}
		value := r.Amount(amount)
		if value <= 0 {
			continue
		}
		applied = append(applied, pricing.AppliedPromo{
			RuleID: r.ID,
			Name:   r.Name,
			Kind:   string(r.Kind),
			Amount: value,
		})
		total += value
	}
	return applied, total
}
