package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/warung-ops/backend-warung/internal/common"
	"github.com/warung-ops/backend-warung/internal/events"
	"github.com/warung-ops/backend-warung/internal/pricing"
)

// OrderStore captures the persistence surface the service needs.
type OrderStore interface {
	Create(ctx context.Context, o Order) (Order, error)
	Get(ctx context.Context, id uuid.UUID) (Order, error)
	List(ctx context.Context, ownerKey string, status Status, limit, offset int) ([]Order, error)
	ReplaceItems(ctx context.Context, id uuid.UUID, items []pricing.LineItem, breakdown *pricing.Breakdown, couponID *uuid.UUID) (Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (Order, error)
}

// CartClearer empties the requester's cart after a successful checkout.
type CartClearer interface {
	Clear(ctx context.Context, cartID uuid.UUID) error
}

// StockAdjuster shifts tracked product stock after a sale.
type StockAdjuster interface {
	AdjustStock(ctx context.Context, id uuid.UUID, delta int32) error
}

// Publisher emits domain events.
type Publisher interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Service wires the calculator to persistence and side effects. Usage-counter
// increments, cart clearing and stock adjustments happen after the order row
// commits; each is an independent write, logged but not rolled back on
// failure.
type Service struct {
	Store  OrderStore
	Calc   *Calculator
	Carts  CartClearer
	Stock  StockAdjuster
	Bus    Publisher
	Logger zerolog.Logger
}

// CreateInput is a checkout request.
type CreateInput struct {
	OwnerKey   string
	Items      []ItemInput
	CouponCode string
	CartID     *uuid.UUID
	Shipping   json.RawMessage
	Payment    json.RawMessage
}

func notFound(err error) error {
	return &common.AppError{Code: "NOT_FOUND", Message: "order not found", HTTPStatus: http.StatusNotFound, Err: err}
}

// Preview prices a prospective order without mutating anything. An invalid
// coupon yields a zero discount plus a warning instead of failing.
func (s *Service) Preview(ctx context.Context, items []ItemInput, couponCode string, preserveOriginal bool) (Quote, error) {
	if s == nil || s.Calc == nil {
		return Quote{}, errors.New("order: service not configured")
	}
	return s.Calc.QuoteInputs(ctx, items, QuoteOptions{
		CouponCode: couponCode,
		Strict:     false,
		SkipPromos: preserveOriginal,
	})
}

// Create runs the calculator in strict mode, persists the order atomically,
// then commits usage counters and the remaining side effects.
func (s *Service) Create(ctx context.Context, in CreateInput) (Order, error) {
	if s == nil || s.Calc == nil || s.Store == nil {
		return Order{}, errors.New("order: service not configured")
	}
	q, err := s.Calc.QuoteInputs(ctx, in.Items, QuoteOptions{CouponCode: in.CouponCode, Strict: true})
	if err != nil {
		return Order{}, err
	}
	o := Order{
		OwnerKey:  in.OwnerKey,
		Status:    StatusPending,
		Items:     q.Items,
		Breakdown: q.Breakdown,
		Shipping:  in.Shipping,
		Payment:   in.Payment,
	}
	if q.Coupon != nil {
		id := q.Coupon.ID
		o.CouponID = &id
	}
	stored, err := s.Store.Create(ctx, o)
	if err != nil {
		return Order{}, fmt.Errorf("persist order: %w", err)
	}

	if err := s.Calc.CommitUsage(ctx, q); err != nil {
		s.Logger.Error().Err(err).Str("order_id", stored.ID.String()).Msg("commit discount usage")
	}
	if s.Stock != nil {
		for _, it := range stored.Items {
			if err := s.Stock.AdjustStock(ctx, it.ProductID, -int32(it.Qty)); err != nil {
				s.Logger.Warn().Err(err).Str("product_id", it.ProductID.String()).Msg("adjust stock")
			}
		}
	}
	if s.Carts != nil && in.CartID != nil {
		if err := s.Carts.Clear(ctx, *in.CartID); err != nil {
			s.Logger.Warn().Err(err).Str("cart_id", in.CartID.String()).Msg("clear cart after checkout")
		}
	}
	if s.Bus != nil {
		payload := map[string]any{"orderId": stored.ID, "total": stored.Breakdown.Total, "status": stored.Status}
		if _, err := s.Bus.Emit(ctx, events.TopicOrderCreated, stored.ID, payload); err != nil {
			s.Logger.Warn().Err(err).Msg("emit order.created")
		}
	}
	return stored, nil
}

// UpdateItems edits an order's line items, re-pricing per the preservation
// policy:
//   - confirmed/delivered: items only, breakdown stays frozen.
//   - pending/processing, never discounted, no new coupon: recompute
//     subtotal/tax/shipping but introduce no automatic discounts.
//   - pending/processing otherwise: the full calculator re-runs.
//
// Edits never increment usage counters; those commit only at creation.
func (s *Service) UpdateItems(ctx context.Context, id uuid.UUID, inputs []ItemInput, couponCode string) (Order, error) {
	if s == nil || s.Calc == nil || s.Store == nil {
		return Order{}, errors.New("order: service not configured")
	}
	existing, err := s.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, notFound(err)
		}
		return Order{}, err
	}

	switch {
	case existing.Status.Fulfilled():
		items, err := s.resolvePreservingSnapshots(ctx, existing, inputs)
		if err != nil {
			return Order{}, err
		}
		return s.Store.ReplaceItems(ctx, id, items, nil, existing.CouponID)

	case existing.Status.Editable():
		if !existing.Breakdown.HasDiscount() && couponCode == "" {
			q, err := s.Calc.QuoteInputs(ctx, inputs, QuoteOptions{SkipPromos: true})
			if err != nil {
				return Order{}, err
			}
			return s.Store.ReplaceItems(ctx, id, q.Items, &q.Breakdown, nil)
		}
		code := couponCode
		if code == "" {
			code = existing.Breakdown.CouponCode
		}
		q, err := s.Calc.QuoteInputs(ctx, inputs, QuoteOptions{CouponCode: code, Strict: true})
		if err != nil {
			return Order{}, err
		}
		var couponID *uuid.UUID
		if q.Coupon != nil {
			cid := q.Coupon.ID
			couponID = &cid
		}
		return s.Store.ReplaceItems(ctx, id, q.Items, &q.Breakdown, couponID)

	default:
		return Order{}, &common.AppError{
			Code:       "BAD_REQUEST",
			Message:    fmt.Sprintf("order in status %q cannot be edited", existing.Status),
			HTTPStatus: http.StatusBadRequest,
		}
	}
}

// resolvePreservingSnapshots rebuilds the item list for a fulfilled-order
// edit: products already on the order keep their snapshot unit price, new
// products get a fresh lookup.
func (s *Service) resolvePreservingSnapshots(ctx context.Context, existing Order, inputs []ItemInput) ([]pricing.LineItem, error) {
	snapshots := make(map[uuid.UUID]pricing.LineItem, len(existing.Items))
	for _, it := range existing.Items {
		snapshots[it.ProductID] = it
	}
	var fresh []ItemInput
	for _, in := range inputs {
		if in.Qty < 1 {
			return nil, invalidItem("item quantity must be at least 1")
		}
		if _, ok := snapshots[in.ProductID]; !ok {
			fresh = append(fresh, in)
		}
	}
	looked := map[uuid.UUID]pricing.LineItem{}
	if len(fresh) > 0 {
		items, err := s.Calc.ResolveItems(ctx, fresh)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			looked[it.ProductID] = it
		}
	}
	out := make([]pricing.LineItem, 0, len(inputs))
	for _, in := range inputs {
		if snap, ok := snapshots[in.ProductID]; ok {
			snap.Qty = in.Qty
			out = append(out, snap)
			continue
		}
		it := looked[in.ProductID]
		it.Qty = in.Qty
		out = append(out, it)
	}
	return out, nil
}

// SetStatus moves the order along the lifecycle, emitting a status event.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, next Status) (Order, error) {
	if s == nil || s.Store == nil {
		return Order{}, errors.New("order: service not configured")
	}
	existing, err := s.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, notFound(err)
		}
		return Order{}, err
	}
	if !existing.Status.CanTransition(next) {
		return Order{}, &common.AppError{
			Code:       "BAD_REQUEST",
			Message:    fmt.Sprintf("cannot move order from %q to %q", existing.Status, next),
			HTTPStatus: http.StatusBadRequest,
		}
	}
	updated, err := s.Store.UpdateStatus(ctx, id, next)
	if err != nil {
		return Order{}, err
	}
	if s.Bus != nil {
		topic := events.TopicOrderStatusChanged
		if next == StatusCanceled {
			topic = events.TopicOrderCanceled
		}
		payload := map[string]any{"orderId": updated.ID, "from": existing.Status, "to": next}
		if _, err := s.Bus.Emit(ctx, topic, updated.ID, payload); err != nil {
			s.Logger.Warn().Err(err).Msg("emit order status event")
		}
	}
	return updated, nil
}

// Cancel is the customer-facing path: allowed only before fulfillment.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (Order, error) {
	return s.SetStatus(ctx, id, StatusCanceled)
}
