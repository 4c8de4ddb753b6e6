package pricing

import (
	"testing"

	"github.com/google/uuid"
)

func TestSubtotalSkipsNonPositiveQty(t *testing.T) {
	items := []LineItem{
		{Qty: 2, UnitPrice: 10_000},
		{Qty: 0, UnitPrice: 99_999},
		{Qty: -1, UnitPrice: 99_999},
	}
	if got := Subtotal(items); got != 20_000 {
		t.Fatalf("expected subtotal 20000, got %d", got)
	}
}

func TestTaxAmountBps(t *testing.T) {
	if got := TaxAmount(20_000, 500); got != 1_000 {
		t.Fatalf("expected tax 1000, got %d", got)
	}
	if got := TaxAmount(0, 500); got != 0 {
		t.Fatalf("expected zero tax on zero amount, got %d", got)
	}
	if got := TaxAmount(20_000, 0); got != 0 {
		t.Fatalf("expected zero tax at zero bps, got %d", got)
	}
}

func TestAssembleNoDiscounts(t *testing.T) {
	items := []LineItem{{Qty: 2, UnitPrice: 10_000}}
	b := Assemble(items, 500, 1_000, "", 0, nil)
	if b.Subtotal != 20_000 || b.Tax != 1_000 || b.Shipping != 1_000 {
		t.Fatalf("unexpected components: %+v", b)
	}
	if b.Total != b.Subtotal+b.Tax+b.Shipping {
		t.Fatalf("total must equal subtotal+tax+shipping when no discounts, got %d", b.Total)
	}
}

func TestAssembleWorkedExample(t *testing.T) {
	// Cart [{P1 @10000 x2}], tax 500 bps, shipping 1000, fixed coupon 1000.
	items := []LineItem{{ProductID: uuid.New(), Qty: 2, UnitPrice: 10_000}}
	b := Assemble(items, 500, 1_000, "SAVE10", 1_000, nil)
	if b.Subtotal != 20_000 {
		t.Fatalf("subtotal: got %d", b.Subtotal)
	}
	if b.Tax != 1_000 {
		t.Fatalf("tax: got %d", b.Tax)
	}
	if b.CouponDiscount != 1_000 {
		t.Fatalf("coupon discount: got %d", b.CouponDiscount)
	}
	if b.Total != 21_000 {
		t.Fatalf("total: expected 21000, got %d", b.Total)
	}
}

func TestAssembleSumsPromos(t *testing.T) {
	items := []LineItem{{Qty: 1, UnitPrice: 100_000}}
	promos := []AppliedPromo{
		{RuleID: uuid.New(), Name: "weekday", Kind: "percent", Amount: 10_000},
		{RuleID: uuid.New(), Name: "opening", Kind: "fixed", Amount: 5_000},
	}
	b := Assemble(items, 0, 0, "", 0, promos)
	if b.AutoDiscount != 15_000 {
		t.Fatalf("expected stacked auto discount 15000, got %d", b.AutoDiscount)
	}
	if b.TotalDiscount != 15_000 {
		t.Fatalf("expected total discount 15000, got %d", b.TotalDiscount)
	}
	if b.Total != 85_000 {
		t.Fatalf("expected total 85000, got %d", b.Total)
	}
}

func TestAssembleNoJointClamp(t *testing.T) {
	// Individually clamped discounts may still jointly exceed the amount;
	// the breakdown keeps the negative total rather than flooring it.
	items := []LineItem{{Qty: 1, UnitPrice: 10_000}}
	promos := []AppliedPromo{
		{Name: "a", Kind: "fixed", Amount: 8_000},
		{Name: "b", Kind: "fixed", Amount: 8_000},
	}
	b := Assemble(items, 0, 0, "", 0, promos)
	if b.Total != -6_000 {
		t.Fatalf("expected total -6000 without joint clamp, got %d", b.Total)
	}
}

func TestHasDiscount(t *testing.T) {
	if (Breakdown{}).HasDiscount() {
		t.Fatal("empty breakdown should report no discount")
	}
	if !(Breakdown{CouponCode: "X"}).HasDiscount() {
		t.Fatal("coupon code alone should count as discounted")
	}
	if !(Breakdown{AutoDiscount: 1}).HasDiscount() {
		t.Fatal("auto discount should count as discounted")
	}
}
