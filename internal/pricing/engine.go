package pricing

import (
	"github.com/google/uuid"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// LineItem is a priced order line captured at evaluation time. Later product
// price changes never alter an already-quoted or already-placed order.
type LineItem struct {
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	Qty       int       `json:"qty"`
	UnitPrice Money     `json:"unitPrice"`
}

// AppliedPromo snapshots an automatic discount at the moment it was applied.
// It carries name/kind/amount at time of purchase, not a live reference, so
// later edits to the rule definition do not reprice history.
type AppliedPromo struct {
	RuleID uuid.UUID `json:"ruleId"`
	Name   string    `json:"name"`
	Kind   string    `json:"kind"`
	Amount Money     `json:"amount"`
}

// Breakdown aggregates the computed pricing components for an order.
type Breakdown struct {
	Subtotal       Money          `json:"subtotal"`
	TaxBps         int32          `json:"taxBps"`
	Tax            Money          `json:"tax"`
	Shipping       Money          `json:"shipping"`
	CouponCode     string         `json:"couponCode,omitempty"`
	CouponDiscount Money          `json:"couponDiscount"`
	AutoDiscount   Money          `json:"autoDiscount"`
	TotalDiscount  Money          `json:"totalDiscount"`
	Total          Money          `json:"total"`
	AppliedPromos  []AppliedPromo `json:"appliedPromos,omitempty"`
}

// HasDiscount reports whether any coupon or automatic discount contributed
// to this breakdown.
func (b Breakdown) HasDiscount() bool {
	return b.CouponDiscount > 0 || b.AutoDiscount > 0 || b.CouponCode != ""
}

// Subtotal sums qty * unit price across line items. Non-positive quantities
// are skipped rather than rejected; input validation happens upstream.
func Subtotal(items []LineItem) Money {
	var subtotal Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	return subtotal
}

// TotalQty sums quantities across line items.
func TotalQty(items []LineItem) int {
	var qty int
	for _, it := range items {
		if it.Qty > 0 {
			qty += it.Qty
		}
	}
	return qty
}

// TaxAmount computes tax on the given amount using basis points.
func TaxAmount(amount Money, bps int32) Money {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount * Money(bps)) / 10000
}

// Assemble builds the final breakdown from the individually computed parts.
// Each discount has already been clamped to the amount it discounts; there is
// deliberately no whole-breakdown floor at zero, so a pathological rule set
// can drive Total negative. Callers that care must check.
func Assemble(items []LineItem, taxBps int32, shipping Money, couponCode string, couponDiscount Money, promos []AppliedPromo) Breakdown {
	subtotal := Subtotal(items)
	tax := TaxAmount(subtotal, taxBps)
	if shipping < 0 {
		shipping = 0
	}
	var auto Money
	for _, p := range promos {
		auto += p.Amount
	}
	total := subtotal + tax + shipping - couponDiscount - auto
	return Breakdown{
		Subtotal:       subtotal,
		TaxBps:         taxBps,
		Tax:            tax,
		Shipping:       shipping,
		CouponCode:     couponCode,
		CouponDiscount: couponDiscount,
		AutoDiscount:   auto,
		TotalDiscount:  couponDiscount + auto,
		Total:          total,
		AppliedPromos:  promos,
	}
}
