package order

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/warung-ops/backend-warung/internal/catalog"
	"github.com/warung-ops/backend-warung/internal/common"
	"github.com/warung-ops/backend-warung/internal/coupon"
	"github.com/warung-ops/backend-warung/internal/events"
	"github.com/warung-ops/backend-warung/internal/pricing"
	"github.com/warung-ops/backend-warung/internal/settings"
)

type memOrders struct {
	orders map[uuid.UUID]Order
}

func newMemOrders() *memOrders { return &memOrders{orders: map[uuid.UUID]Order{}} }

func (m *memOrders) Create(_ context.Context, o Order) (Order, error) {
	o.ID = uuid.New()
	m.orders[o.ID] = o
	return o, nil
}

func (m *memOrders) Get(_ context.Context, id uuid.UUID) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memOrders) List(_ context.Context, _ string, _ Status, _, _ int) ([]Order, error) {
	return nil, nil
}

func (m *memOrders) ReplaceItems(_ context.Context, id uuid.UUID, items []pricing.LineItem, breakdown *pricing.Breakdown, couponID *uuid.UUID) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, pgx.ErrNoRows
	}
	o.Items = items
	if breakdown != nil {
		o.Breakdown = *breakdown
		o.CouponID = couponID
	}
	m.orders[id] = o
	return o, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id uuid.UUID, status Status) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, pgx.ErrNoRows
	}
	o.Status = status
	m.orders[id] = o
	return o, nil
}

type memCarts struct{ cleared []uuid.UUID }

func (m *memCarts) Clear(_ context.Context, id uuid.UUID) error {
	m.cleared = append(m.cleared, id)
	return nil
}

type memBus struct{ topics []string }

func (m *memBus) Emit(_ context.Context, topic string, _ uuid.UUID, _ any) (events.Event, error) {
	m.topics = append(m.topics, topic)
	return events.Event{Topic: topic}, nil
}

func testService(products map[uuid.UUID]catalog.Product, cfg settings.Settings, coupons *fakeCoupons, promos *fakePromos) (*Service, *memOrders, *memCarts, *memBus) {
	store := newMemOrders()
	carts := &memCarts{}
	bus := &memBus{}
	svc := &Service{
		Store:  store,
		Calc:   newCalc(products, cfg, coupons, promos),
		Carts:  carts,
		Bus:    bus,
		Logger: zerolog.Nop(),
	}
	return svc, store, carts, bus
}

func TestCreateCommitsUsageAndClearsCart(t *testing.T) {
	p1 := uuid.New()
	coupons := &fakeCoupons{byCode: map[string]coupon.Applied{
		"SAVE10": {ID: uuid.New(), Code: "SAVE10", Kind: coupon.KindFixed, Discount: 1_000},
	}}
	promos := &fakePromos{}
	svc, _, carts, bus := testService(
		map[uuid.UUID]catalog.Product{p1: {ID: p1, Name: "Nasi Goreng", Price: 10_000, Available: true}},
		settings.Settings{TaxBps: 500, ShippingFlat: 1_000},
		coupons, promos,
	)
	cartID := uuid.New()
	created, err := svc.Create(context.Background(), CreateInput{
		OwnerKey:   "user:abc",
		Items:      []ItemInput{{ProductID: p1, Qty: 2}},
		CouponCode: "SAVE10",
		CartID:     &cartID,
		Shipping:   json.RawMessage(`{"address":"Jl. Melati 1"}`),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.Status != StatusPending {
		t.Fatalf("new orders start pending, got %s", created.Status)
	}
	if created.Breakdown.Total != 21_000 {
		t.Fatalf("expected committed total 21000, got %d", created.Breakdown.Total)
	}
	if coupons.redeems != 1 {
		t.Fatalf("coupon usage must increment exactly once at creation, got %d", coupons.redeems)
	}
	if len(carts.cleared) != 1 || carts.cleared[0] != cartID {
		t.Fatalf("cart must be cleared on successful checkout: %v", carts.cleared)
	}
	if len(bus.topics) != 1 || bus.topics[0] != events.TopicOrderCreated {
		t.Fatalf("expected order.created event, got %v", bus.topics)
	}
}

func TestCreateFailsHardOnInvalidCoupon(t *testing.T) {
	p1 := uuid.New()
	coupons := &fakeCoupons{fail: coupon.ErrExhausted}
	svc, store, _, _ := testService(
		map[uuid.UUID]catalog.Product{p1: {ID: p1, Price: 10_000, Available: true}},
		settings.Settings{},
		coupons, &fakePromos{},
	)
	_, err := svc.Create(context.Background(), CreateInput{
		OwnerKey:   "user:abc",
		Items:      []ItemInput{{ProductID: p1, Qty: 1}},
		CouponCode: "GONE",
	})
	if !errors.Is(err, coupon.ErrExhausted) {
		t.Fatalf("expected coupon error to abort checkout, got %v", err)
	}
	if len(store.orders) != 0 {
		t.Fatal("no partial order may be persisted on a failed checkout")
	}
	if coupons.redeems != 0 {
		t.Fatal("failed checkout must not increment usage")
	}
}

func TestUpdateDeliveredKeepsBreakdownFrozen(t *testing.T) {
	p1 := uuid.New()
	promos := &fakePromos{applied: []pricing.AppliedPromo{{RuleID: uuid.New(), Name: "new promo", Kind: "fixed", Amount: 3_000}}}
	svc, store, _, _ := testService(
		map[uuid.UUID]catalog.Product{p1: {ID: p1, Name: "Sate", Price: 12_000, Available: true}},
		settings.Settings{TaxBps: 500},
		&fakeCoupons{}, promos,
	)
	original := Order{
		Status: StatusDelivered,
		Items:  []pricing.LineItem{{ProductID: p1, Name: "Sate", Qty: 2, UnitPrice: 9_000}},
		Breakdown: pricing.Breakdown{
			Subtotal: 18_000, TaxBps: 500, Tax: 900, Total: 18_900,
		},
	}
	stored, _ := store.Create(context.Background(), original)

	updated, err := svc.UpdateItems(context.Background(), stored.ID, []ItemInput{{ProductID: p1, Qty: 5}}, "")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !reflect.DeepEqual(updated.Breakdown, original.Breakdown) {
		t.Fatalf("delivered order's pricing must stay identical:\n got %+v\nwant %+v", updated.Breakdown, original.Breakdown)
	}
	if updated.Items[0].Qty != 5 {
		t.Fatalf("items must still update, got qty %d", updated.Items[0].Qty)
	}
	if updated.Items[0].UnitPrice != 9_000 {
		t.Fatalf("snapshot unit price must survive the edit, got %d", updated.Items[0].UnitPrice)
	}
}

func TestUpdatePlainPendingOrderStaysPlain(t *testing.T) {
	p1 := uuid.New()
	// A promo is active now, but the order never had a discount: the edit
	// must not pick it up.
	promos := &fakePromos{applied: []pricing.AppliedPromo{{RuleID: uuid.New(), Name: "later promo", Kind: "fixed", Amount: 2_000}}}
	svc, store, _, _ := testService(
		map[uuid.UUID]catalog.Product{p1: {ID: p1, Name: "Bakso", Price: 15_000, Available: true}},
		settings.Settings{TaxBps: 1_000, ShippingFlat: 500},
		&fakeCoupons{}, promos,
	)
	stored, _ := store.Create(context.Background(), Order{
		Status: StatusPending,
		Items:  []pricing.LineItem{{ProductID: p1, Qty: 1, UnitPrice: 15_000}},
		Breakdown: pricing.Breakdown{
			Subtotal: 15_000, TaxBps: 1_000, Tax: 1_500, Shipping: 500, Total: 17_000,
		},
	})

	updated, err := svc.UpdateItems(context.Background(), stored.ID, []ItemInput{{ProductID: p1, Qty: 2}}, "")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	b := updated.Breakdown
	if b.Subtotal != 30_000 || b.Tax != 3_000 || b.Shipping != 500 {
		t.Fatalf("base amounts must be recomputed: %+v", b)
	}
	if b.AutoDiscount != 0 || len(b.AppliedPromos) != 0 {
		t.Fatalf("a plain order must not gain promotions on edit: %+v", b)
	}
	if b.Total != 33_500 {
		t.Fatalf("expected total 33500, got %d", b.Total)
	}
}

func TestUpdateDiscountedOrderRerunsFullCalculator(t *testing.T) {
	p1 := uuid.New()
	promos := &fakePromos{applied: []pricing.AppliedPromo{{RuleID: uuid.New(), Name: "weekday", Kind: "fixed", Amount: 2_000}}}
	coupons := &fakeCoupons{byCode: map[string]coupon.Applied{
		"SAVE10": {ID: uuid.New(), Code: "SAVE10", Kind: coupon.KindFixed, Discount: 1_000},
	}}
	svc, store, _, _ := testService(
		map[uuid.UUID]catalog.Product{p1: {ID: p1, Name: "Mie Ayam", Price: 10_000, Available: true}},
		settings.Settings{},
		coupons, promos,
	)
	stored, _ := store.Create(context.Background(), Order{
		Status: StatusProcessing,
		Items:  []pricing.LineItem{{ProductID: p1, Qty: 1, UnitPrice: 10_000}},
		Breakdown: pricing.Breakdown{
			Subtotal: 10_000, CouponCode: "SAVE10", CouponDiscount: 1_000,
			TotalDiscount: 1_000, Total: 9_000,
		},
	})

	updated, err := svc.UpdateItems(context.Background(), stored.ID, []ItemInput{{ProductID: p1, Qty: 3}}, "")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	b := updated.Breakdown
	if b.CouponCode != "SAVE10" || b.CouponDiscount != 1_000 {
		t.Fatalf("existing coupon must be re-applied: %+v", b)
	}
	if b.AutoDiscount != 2_000 {
		t.Fatalf("full recompute includes current promotions: %+v", b)
	}
	if coupons.redeems != 0 {
		t.Fatal("edits must never increment usage counters")
	}
}

func TestUpdateCanceledOrderRejected(t *testing.T) {
	p1 := uuid.New()
	svc, store, _, _ := testService(
		map[uuid.UUID]catalog.Product{p1: {ID: p1, Price: 10_000, Available: true}},
		settings.Settings{}, &fakeCoupons{}, &fakePromos{},
	)
	stored, _ := store.Create(context.Background(), Order{Status: StatusCanceled})

	_, err := svc.UpdateItems(context.Background(), stored.ID, []ItemInput{{ProductID: p1, Qty: 1}}, "")
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.HTTPStatus != 400 {
		t.Fatalf("expected 400 for canceled order edit, got %v", err)
	}
}

func TestSetStatusValidatesTransitions(t *testing.T) {
	svc, store, _, bus := testService(nil, settings.Settings{}, &fakeCoupons{}, &fakePromos{})
	stored, _ := store.Create(context.Background(), Order{Status: StatusDelivered})

	if _, err := svc.SetStatus(context.Background(), stored.ID, StatusPending); err == nil {
		t.Fatal("delivered orders must not move back to pending")
	}

	pending, _ := store.Create(context.Background(), Order{Status: StatusPending})
	updated, err := svc.SetStatus(context.Background(), pending.ID, StatusConfirmed)
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if updated.Status != StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", updated.Status)
	}
	if len(bus.topics) == 0 || bus.topics[len(bus.topics)-1] != events.TopicOrderStatusChanged {
		t.Fatalf("expected status event, got %v", bus.topics)
	}
}
