package orders

import (
	"time"

	"github.com/aarnajewels/storefront-core/pkg/types"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// IsValid reports whether the status is one of the known states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
// Orders advance pending, confirmed, shipped, delivered and may be
// cancelled any time before shipping.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusShipped || next == StatusCancelled
	case StatusShipped:
		return next == StatusDelivered
	default:
		return false
	}
}

// Record is the durable order document written at checkout handoff time.
// It freezes the cart snapshot and pricing so later catalog edits never
// change what was ordered.
type Record struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId"`
	Items     []types.LineItem   `json:"items"`
	Summary   types.OrderSummary `json:"summary"`
	PromoCode string             `json:"promoCode,omitempty"`
	Status    Status             `json:"status"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
