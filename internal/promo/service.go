package promo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/warung-ops/backend-warung/internal/pricing"
)

// RuleSource captures the store methods the service needs.
type RuleSource interface {
	ListActive(ctx context.Context) ([]Rule, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) error
}

// Service evaluates the active automatic discounts for the tenant in context.
type Service struct {
	Store RuleSource
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Resolve returns every active rule that qualifies against the post-coupon
// amount, with per-rule amounts and the stacked total. Pure with respect to
// usage counters; Commit increments them.
func (s *Service) Resolve(ctx context.Context, amount pricing.Money, totalQty int, items []Item) ([]pricing.AppliedPromo, pricing.Money, error) {
	if s == nil || s.Store == nil {
		return nil, 0, errors.New("promo service not configured")
	}
	rules, err := s.Store.ListActive(ctx)
	if err != nil {
		return nil, 0, err
	}
	applied, total := Resolve(rules, s.now(), amount, totalQty, items)
	return applied, total, nil
}

// Commit increments the usage counter of every applied rule. Runs at order
// creation only, never for previews.
func (s *Service) Commit(ctx context.Context, applied []pricing.AppliedPromo) error {
	if s == nil || s.Store == nil {
		return errors.New("promo service not configured")
	}
	var joined error
	for _, p := range applied {
		if err := s.Store.IncrementUsage(ctx, p.RuleID); err != nil {
			joined = errors.Join(joined, err)
		}
	}
	return joined
}
