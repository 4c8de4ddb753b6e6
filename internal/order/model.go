package order

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/warung-ops/backend-warung/internal/pricing"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusConfirmed  Status = "confirmed"
	StatusDelivered  Status = "delivered"
	StatusCanceled   Status = "canceled"
)

// Editable reports whether the order's breakdown may still be recomputed.
func (s Status) Editable() bool {
	return s == StatusPending || s == StatusProcessing
}

// Fulfilled reports the states where edits touch items only, never pricing.
func (s Status) Fulfilled() bool {
	return s == StatusConfirmed || s == StatusDelivered
}

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusConfirmed, StatusCanceled},
	StatusProcessing: {StatusConfirmed, StatusCanceled},
	StatusConfirmed:  {StatusDelivered, StatusCanceled},
	StatusDelivered:  {},
	StatusCanceled:   {},
}

// CanTransition reports whether the move from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order owns one pricing breakdown, created at checkout. The breakdown is
// mutable only while the order is pending/processing, and only through the
// calculator, never by direct field edits.
type Order struct {
	ID        uuid.UUID          `json:"id"`
	OwnerKey  string             `json:"-"`
	Status    Status             `json:"status"`
	Items     []pricing.LineItem `json:"items"`
	Breakdown pricing.Breakdown  `json:"pricing"`
	CouponID  *uuid.UUID         `json:"-"`
	Shipping  json.RawMessage    `json:"shippingDetails,omitempty"`
	Payment   json.RawMessage    `json:"paymentDetails,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
