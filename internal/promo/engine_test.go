package promo

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func activeRule(name string, cond Condition) Rule {
	var kind Kind
	switch cond.(type) {
	case PercentCond:
		kind = KindPercent
	case FixedCond:
		kind = KindFixed
	case BulkCond:
		kind = KindBulk
	case BuyXGetYCond:
		kind = KindBuyXGetY
	}
	return Rule{ID: uuid.New(), Name: name, Kind: kind, Cond: cond, Enabled: true}
}

func TestResolvePercentAndFixedStack(t *testing.T) {
	rules := []Rule{
		activeRule("weekday", PercentCond{Bps: 1_000}),
		activeRule("opening", FixedCond{Amount: 5_000}),
	}
	applied, total := Resolve(rules, time.Now(), 100_000, 3, nil)
	if len(applied) != 2 {
		t.Fatalf("expected both rules applied, got %d", len(applied))
	}
	if total != 15_000 {
		t.Fatalf("expected stacked total 15000, got %d", total)
	}
}

func TestResolveBulkThreshold(t *testing.T) {
	rule := activeRule("bulk10", BulkCond{Threshold: 10, Bps: 2_000})
	if _, total := Resolve([]Rule{rule}, time.Now(), 100_000, 9, nil); total != 0 {
		t.Fatalf("bulk must not apply at qty 9, got %d", total)
	}
	applied, total := Resolve([]Rule{rule}, time.Now(), 100_000, 10, nil)
	if len(applied) != 1 || total != 20_000 {
		t.Fatalf("bulk must apply at qty 10, got applied=%d total=%d", len(applied), total)
	}
}

func TestResolveBuyXGetYIsReserved(t *testing.T) {
	rule := activeRule("bundled", BuyXGetYCond{BuyQty: 2, GetQty: 1})
	applied, total := Resolve([]Rule{rule}, time.Now(), 100_000, 5, nil)
	if len(applied) != 0 || total != 0 {
		t.Fatalf("buy_x_get_y must compute zero, got applied=%d total=%d", len(applied), total)
	}
}

func TestResolveSkipsBelowMinOrder(t *testing.T) {
	rule := activeRule("big-spender", PercentCond{Bps: 500})
	rule.MinOrder = 200_000
	if _, total := Resolve([]Rule{rule}, time.Now(), 100_000, 1, nil); total != 0 {
		t.Fatalf("rule below min order must be skipped, got %d", total)
	}
}

func TestResolvePercentCap(t *testing.T) {
	rule := activeRule("capped", PercentCond{Bps: 5_000})
	rule.MaxDiscount = 10_000
	_, total := Resolve([]Rule{rule}, time.Now(), 100_000, 1, nil)
	if total != 10_000 {
		t.Fatalf("expected cap at 10000, got %d", total)
	}
}

func TestResolveIndividualClampNoProration(t *testing.T) {
	rules := []Rule{
		activeRule("a", FixedCond{Amount: 80_000}),
		activeRule("b", FixedCond{Amount: 80_000}),
	}
	applied, total := Resolve(rules, time.Now(), 100_000, 1, nil)
	if len(applied) != 2 {
		t.Fatalf("expected both rules, got %d", len(applied))
	}
	for _, p := range applied {
		if p.Amount != 80_000 {
			t.Fatalf("each amount clamps individually, got %d", p.Amount)
		}
	}
	// No joint clamp: the sum may exceed the amount.
	if total != 160_000 {
		t.Fatalf("expected unprorated total 160000, got %d", total)
	}
}

func TestResolveScopeMatchesAnyItem(t *testing.T) {
	scopedProduct := uuid.New()
	rule := activeRule("scoped", PercentCond{Bps: 1_000})
	rule.ProductIDs = []uuid.UUID{scopedProduct}

	miss := []Item{{ProductID: uuid.New(), Qty: 1}}
	if _, total := Resolve([]Rule{rule}, time.Now(), 50_000, 1, miss); total != 0 {
		t.Fatalf("unscoped cart must not qualify, got %d", total)
	}

	hit := append(miss, Item{ProductID: scopedProduct, Qty: 1})
	if _, total := Resolve([]Rule{rule}, time.Now(), 50_000, 2, hit); total != 5_000 {
		t.Fatalf("one matching item qualifies the rule, got %d", total)
	}
}

func TestResolveCategoryScope(t *testing.T) {
	rule := activeRule("drinks", PercentCond{Bps: 1_000})
	rule.Categories = []string{"beverage"}
	items := []Item{{ProductID: uuid.New(), Category: "beverage", Qty: 2}}
	if _, total := Resolve([]Rule{rule}, time.Now(), 40_000, 2, items); total != 4_000 {
		t.Fatalf("category scope must qualify, got %d", total)
	}
}

func TestResolveStableOrderByID(t *testing.T) {
	a := activeRule("a", FixedCond{Amount: 1})
	b := activeRule("b", FixedCond{Amount: 2})
	first, _ := Resolve([]Rule{a, b}, time.Now(), 100, 1, nil)
	second, _ := Resolve([]Rule{b, a}, time.Now(), 100, 1, nil)
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected two applied rules")
	}
	if first[0].RuleID != second[0].RuleID || first[1].RuleID != second[1].RuleID {
		t.Fatal("resolution order must not depend on input order")
	}
}

func TestRuleExhaustedSkipped(t *testing.T) {
	rule := activeRule("tired", FixedCond{Amount: 1_000})
	rule.UsageLimit = 3
	rule.UsedCount = 3
	if _, total := Resolve([]Rule{rule}, time.Now(), 10_000, 1, nil); total != 0 {
		t.Fatalf("exhausted rule must be skipped, got %d", total)
	}
}
