package coupon

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/warung-ops/backend-warung/internal/pricing"
)

var (
	// ErrNotFound is returned when no enabled coupon matches the code.
	ErrNotFound = errors.New("coupon not found")
	// ErrExpired is returned when the coupon is outside its active window.
	ErrExpired = errors.New("coupon expired")
	// ErrExhausted indicates the coupon has reached its usage cap.
	ErrExhausted = errors.New("coupon usage limit reached")
	// ErrMinOrderNotMet indicates the order amount did not meet the coupon requirement.
	ErrMinOrderNotMet = errors.New("minimum order not met")
)

// Kind enumerates the supported coupon discount kinds.
type Kind string

const (
	KindPercent Kind = "percent"
	KindFixed   Kind = "fixed"
)

// Coupon captures a manually entered promotional code and its constraints.
type Coupon struct {
	ID          uuid.UUID
	Code        string
	Kind        Kind
	Value       pricing.Money
	PercentBps  int32
	MinOrder    pricing.Money
	MaxDiscount pricing.Money
	ValidFrom   *time.Time
	ValidTo     *time.Time
	UsageLimit  int32
	UsedCount   int32
	Enabled     bool
}

// NormalizeCode upper-cases and trims a user supplied coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Applied is the result of a successful resolution.
type Applied struct {
	ID       uuid.UUID     `json:"id"`
	Code     string        `json:"code"`
	Kind     Kind          `json:"kind"`
	Discount pricing.Money `json:"discount"`
}

// Resolve validates the coupon at the provided instant against the
// pre-discount amount and computes its discount contribution. It is a pure
// function; usage increments happen only at order commit, never here, so a
// preview can run any number of times without side effects.
func (c Coupon) Resolve(now time.Time, amount pricing.Money) (Applied, error) {
	if !c.Enabled {
		return Applied{}, ErrNotFound
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return Applied{}, ErrExpired
	}
	if c.ValidTo != nil && now.After(*c.ValidTo) {
		return Applied{}, ErrExpired
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return Applied{}, ErrExhausted
	}
	if c.MinOrder > 0 && amount < c.MinOrder {
		return Applied{}, fmt.Errorf("%w: minimum order %d", ErrMinOrderNotMet, c.MinOrder)
	}
	discount := c.Value
	if c.Kind == KindPercent {
		discount = (amount * pricing.Money(c.PercentBps)) / 10000
		if c.MaxDiscount > 0 && discount > c.MaxDiscount {
			discount = c.MaxDiscount
		}
	}
	if discount > amount {
		discount = amount
	}
	if discount < 0 {
		discount = 0
	}
	return Applied{ID: c.ID, Code: c.Code, Kind: c.Kind, Discount: discount}, nil
}
