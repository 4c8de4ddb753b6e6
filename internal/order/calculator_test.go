package order

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/warung-ops/backend-warung/internal/catalog"
	"github.com/warung-ops/backend-warung/internal/coupon"
	"github.com/warung-ops/backend-warung/internal/pricing"
	"github.com/warung-ops/backend-warung/internal/promo"
	"github.com/warung-ops/backend-warung/internal/settings"
)

type fakeCatalog struct {
	products map[uuid.UUID]catalog.Product
}

func (f *fakeCatalog) Lookup(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error) {
	out := map[uuid.UUID]catalog.Product{}
	for _, id := range ids {
		p, ok := f.products[id]
		if !ok {
			return nil, invalidItem("product not found: " + id.String())
		}
		out[id] = p
	}
	return out, nil
}

type fakeSettings struct {
	cfg settings.Settings
}

func (f *fakeSettings) Get(_ context.Context) (settings.Settings, error) { return f.cfg, nil }

type fakeCoupons struct {
	byCode  map[string]coupon.Applied
	fail    error
	redeems int
	seenAmt pricing.Money
}

func (f *fakeCoupons) Evaluate(_ context.Context, code string, amount pricing.Money) (coupon.Applied, error) {
	f.seenAmt = amount
	if f.fail != nil {
		return coupon.Applied{}, f.fail
	}
	a, ok := f.byCode[coupon.NormalizeCode(code)]
	if !ok {
		return coupon.Applied{}, coupon.ErrNotFound
	}
	return a, nil
}

func (f *fakeCoupons) Redeem(_ context.Context, _ uuid.UUID) error {
	f.redeems++
	return nil
}

type fakePromos struct {
	applied []pricing.AppliedPromo
	commits int
	seenAmt pricing.Money
}

func (f *fakePromos) Resolve(_ context.Context, amount pricing.Money, _ int, _ []promo.Item) ([]pricing.AppliedPromo, pricing.Money, error) {
	f.seenAmt = amount
	var total pricing.Money
	for _, p := range f.applied {
		total += p.Amount
	}
	return f.applied, total, nil
}

func (f *fakePromos) Commit(_ context.Context, _ []pricing.AppliedPromo) error {
	f.commits++
	return nil
}

func newCalc(products map[uuid.UUID]catalog.Product, cfg settings.Settings, coupons *fakeCoupons, promos *fakePromos) *Calculator {
	return &Calculator{
		Catalog:  &fakeCatalog{products: products},
		Settings: &fakeSettings{cfg: cfg},
		Coupons:  coupons,
		Promos:   promos,
	}
}

// Cart [{P1 at 10000, qty 2}], tax 5%, shipping 1000, coupon SAVE10 fixed
// 1000: subtotal 20000, tax 1000, preDiscountTotal 22000, total 21000.
func TestQuoteWorkedExample(t *testing.T) {
	p1 := uuid.New()
	couponID := uuid.New()
	coupons := &fakeCoupons{byCode: map[string]coupon.Applied{
		"SAVE10": {ID: couponID, Code: "SAVE10", Kind: coupon.KindFixed, Discount: 1_000},
	}}
	calc := newCalc(
		map[uuid.UUID]catalog.Product{p1: {ID: p1, Name: "Nasi Goreng", Price: 10_000, Available: true}},
		settings.Settings{TaxBps: 500, ShippingFlat: 1_000},
		coupons, &fakePromos{},
	)

	q, err := calc.QuoteInputs(context.Background(), []ItemInput{{ProductID: p1, Qty: 2}}, QuoteOptions{CouponCode: "SAVE10", Strict: true})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	b := q.Breakdown
	if b.Subtotal != 20_000 || b.Tax != 1_000 || b.Shipping != 1_000 {
		t.Fatalf("unexpected base amounts: %+v", b)
	}
	if coupons.seenAmt != 22_000 {
		t.Fatalf("coupon must be evaluated against the pre-discount total, got %d", coupons.seenAmt)
	}
	if b.CouponDiscount != 1_000 || b.Total != 21_000 {
		t.Fatalf("expected coupon 1000 and total 21000, got %d / %d", b.CouponDiscount, b.Total)
	}
	if coupons.redeems != 0 {
		t.Fatal("quoting must never redeem")
	}
}

func TestQuoteNoDiscountIdentity(t *testing.T) {
	p1 := uuid.New()
	calc := newCalc(
		map[uuid.UUID]catalog.Product{p1: {ID: p1, Price: 7_500, Available: true}},
		settings.Settings{TaxBps: 1_000, ShippingFlat: 2_000},
		&fakeCoupons{}, &fakePromos{},
	)
	q, err := calc.QuoteInputs(context.Background(), []ItemInput{{ProductID: p1, Qty: 3}}, QuoteOptions{})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	b := q.Breakdown
	if want := b.Subtotal + b.Tax + b.Shipping; b.Total != want {
		t.Fatalf("no-discount total must equal subtotal+tax+shipping, got %d want %d", b.Total, want)
	}
}

func TestQuotePreviewSoftFailsInvalidCoupon(t *testing.T) {
	p1 := uuid.New()
	coupons := &fakeCoupons{fail: coupon.ErrExpired}
	calc := newCalc(
		map[uuid.UUID]catalog.Product{p1: {ID: p1, Price: 10_000, Available: true}},
		settings.Settings{},
		coupons, &fakePromos{},
	)
	q, err := calc.QuoteInputs(context.Background(), []ItemInput{{ProductID: p1, Qty: 1}}, QuoteOptions{CouponCode: "OLD"})
	if err != nil {
		t.Fatalf("preview must not fail on an invalid coupon: %v", err)
	}
	if q.Breakdown.CouponDiscount != 0 || q.CouponWarning == "" {
		t.Fatalf("expected zero discount with a warning, got %+v", q)
	}
}

func TestQuoteStrictFailsInvalidCoupon(t *testing.T) {
	p1 := uuid.New()
	calc := newCalc(
		map[uuid.UUID]catalog.Product{p1: {ID: p1, Price: 10_000, Available: true}},
		settings.Settings{},
		&fakeCoupons{fail: coupon.ErrExhausted}, &fakePromos{},
	)
	_, err := calc.QuoteInputs(context.Background(), []ItemInput{{ProductID: p1, Qty: 1}}, QuoteOptions{CouponCode: "GONE", Strict: true})
	if err == nil {
		t.Fatal("strict quote must fail on an invalid coupon")
	}
}

func TestQuotePromosSeePostCouponAmount(t *testing.T) {
	p1 := uuid.New()
	promos := &fakePromos{}
	coupons := &fakeCoupons{byCode: map[string]coupon.Applied{
		"HALF": {ID: uuid.New(), Code: "HALF", Kind: coupon.KindFixed, Discount: 5_000},
	}}
	calc := newCalc(
		map[uuid.UUID]catalog.Product{p1: {ID: p1, Price: 10_000, Available: true}},
		settings.Settings{},
		coupons, promos,
	)
	_, err := calc.QuoteInputs(context.Background(), []ItemInput{{ProductID: p1, Qty: 1}}, QuoteOptions{CouponCode: "HALF", Strict: true})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if promos.seenAmt != 5_000 {
		t.Fatalf("promos must resolve against the post-coupon amount, got %d", promos.seenAmt)
	}
}

func TestQuoteSkipPromos(t *testing.T) {
	p1 := uuid.New()
	promos := &fakePromos{applied: []pricing.AppliedPromo{{RuleID: uuid.New(), Name: "weekday", Kind: "fixed", Amount: 2_000}}}
	calc := newCalc(
		map[uuid.UUID]catalog.Product{p1: {ID: p1, Price: 10_000, Available: true}},
		settings.Settings{},
		&fakeCoupons{}, promos,
	)
	q, err := calc.QuoteInputs(context.Background(), []ItemInput{{ProductID: p1, Qty: 1}}, QuoteOptions{SkipPromos: true})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if q.Breakdown.AutoDiscount != 0 || len(q.Breakdown.AppliedPromos) != 0 {
		t.Fatalf("skip-promos quote must carry no automatic discounts: %+v", q.Breakdown)
	}
}

func TestQuoteRejectsBadItems(t *testing.T) {
	calc := newCalc(map[uuid.UUID]catalog.Product{}, settings.Settings{}, &fakeCoupons{}, &fakePromos{})
	if _, err := calc.QuoteInputs(context.Background(), nil, QuoteOptions{}); err == nil {
		t.Fatal("empty item list must fail")
	}
	if _, err := calc.QuoteInputs(context.Background(), []ItemInput{{ProductID: uuid.New(), Qty: 0}}, QuoteOptions{}); err == nil {
		t.Fatal("zero quantity must fail")
	}
}

func TestCommitUsageIncrementsOnce(t *testing.T) {
	coupons := &fakeCoupons{}
	promos := &fakePromos{}
	calc := &Calculator{Coupons: coupons, Promos: promos}
	q := Quote{
		Coupon: &coupon.Applied{ID: uuid.New(), Code: "SAVE10"},
		Breakdown: pricing.Breakdown{
			AppliedPromos: []pricing.AppliedPromo{{RuleID: uuid.New(), Amount: 500}},
		},
	}
	if err := calc.CommitUsage(context.Background(), q); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if coupons.redeems != 1 || promos.commits != 1 {
		t.Fatalf("expected exactly one redeem and one promo commit, got %d/%d", coupons.redeems, promos.commits)
	}
}
