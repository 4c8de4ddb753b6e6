package coupon

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func enabledFixed(value int64) Coupon {
	return Coupon{Code: "SAVE10", Kind: KindFixed, Value: value, Enabled: true}
}

func TestResolveFixed(t *testing.T) {
	applied, err := enabledFixed(1_000).Resolve(time.Now(), 22_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied.Discount != 1_000 {
		t.Fatalf("expected discount 1000, got %d", applied.Discount)
	}
}

func TestResolvePercentWithCap(t *testing.T) {
	c := Coupon{Code: "TEN", Kind: KindPercent, PercentBps: 1_000, MaxDiscount: 500, Enabled: true}
	applied, err := c.Resolve(time.Now(), 100_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 10% of 100000 is 10000, capped at 500.
	if applied.Discount != 500 {
		t.Fatalf("expected capped discount 500, got %d", applied.Discount)
	}
}

func TestResolvePercentClampedToAmount(t *testing.T) {
	c := Coupon{Code: "ALL", Kind: KindFixed, Value: 50_000, Enabled: true}
	applied, err := c.Resolve(time.Now(), 20_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied.Discount != 20_000 {
		t.Fatalf("discount must never exceed the amount, got %d", applied.Discount)
	}
}

func TestResolveDisabled(t *testing.T) {
	c := enabledFixed(1_000)
	c.Enabled = false
	if _, err := c.Resolve(time.Now(), 10_000); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveWindow(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	c := enabledFixed(1_000)
	c.ValidFrom = &future
	if _, err := c.Resolve(now, 10_000); !errors.Is(err, ErrExpired) {
		t.Fatalf("not yet active: expected ErrExpired, got %v", err)
	}

	c = enabledFixed(1_000)
	c.ValidTo = &past
	if _, err := c.Resolve(now, 10_000); !errors.Is(err, ErrExpired) {
		t.Fatalf("past window: expected ErrExpired, got %v", err)
	}
}

func TestResolveExhausted(t *testing.T) {
	c := enabledFixed(1_000)
	c.UsageLimit = 5
	c.UsedCount = 5
	if _, err := c.Resolve(time.Now(), 10_000); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	// One redemption left still resolves.
	c.UsedCount = 4
	if _, err := c.Resolve(time.Now(), 10_000); err != nil {
		t.Fatalf("expected success at usedCount < limit, got %v", err)
	}
}

func TestResolveMinOrderEmbedsAmount(t *testing.T) {
	c := enabledFixed(1_000)
	c.MinOrder = 50_000
	_, err := c.Resolve(time.Now(), 22_000)
	if !errors.Is(err, ErrMinOrderNotMet) {
		t.Fatalf("expected ErrMinOrderNotMet, got %v", err)
	}
	if !strings.Contains(err.Error(), "50000") {
		t.Fatalf("reason must embed the minimum amount, got %q", err.Error())
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  save10 "); got != "SAVE10" {
		t.Fatalf("expected SAVE10, got %q", got)
	}
}
