package coupon

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/warung-ops/backend-warung/internal/pricing"
)

// Lookup captures the store methods the service needs, so tests can swap a
// fake in without a database.
type Lookup interface {
	GetByCode(ctx context.Context, code string) (Coupon, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) error
}

// Service evaluates and redeems coupons for the tenant in context.
type Service struct {
	Store Lookup
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Evaluate resolves a code against the pre-discount amount without mutating
// state. Safe to call any number of times for previews.
func (s *Service) Evaluate(ctx context.Context, code string, amount pricing.Money) (Applied, error) {
	if s == nil || s.Store == nil {
		return Applied{}, errors.New("coupon service not configured")
	}
	c, err := s.Store.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Applied{}, ErrNotFound
		}
		return Applied{}, err
	}
	return c.Resolve(s.now(), amount)
}

// Redeem commits a previously evaluated coupon by incrementing its usage
// counter. Called by the order service at creation time only.
func (s *Service) Redeem(ctx context.Context, id uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("coupon service not configured")
	}
	return s.Store.IncrementUsage(ctx, id)
}
