// Package settlement turns a completed payment into exactly one sold item
// and one order.
//
// Two independent triggers race to finalize the same sale: the payment
// provider's completion webhook and a manual confirmation from the seller's
// side. Both funnel into the same coordinator, which relies on the
// catalog's one-time available -> sold transition to pick a single winner.
// The loser observes the item already sold and reports success without
// creating anything.
package settlement

import (
	"context"

	"github.com/terryong/negolah/internal/reservation"
)

// Trigger identifies which path initiated a finalization.
type Trigger string

const (
	TriggerWebhook Trigger = "webhook"
	TriggerManual  Trigger = "manual"
)

// Outcome reports what a finalization attempt did.
type Outcome string

const (
	// OutcomeFinalized means this attempt won the race and created the order.
	OutcomeFinalized Outcome = "finalized"
	// OutcomeAlreadySold means another attempt finalized first. Not an error.
	OutcomeAlreadySold Outcome = "already_sold"
)

// Result is the outcome of one finalization attempt.
type Result struct {
	Outcome Outcome `json:"outcome"`
	OrderID string  `json:"orderId,omitempty"`
}

// Leases is the slice of the reservation layer settlement needs: read the
// lease for its agreed price and release it once the sale is recorded.
type Leases interface {
	Get(ctx context.Context, buyerID, itemID string) (*reservation.Reservation, error)
	Release(ctx context.Context, buyerID, itemID string) error
}

// Notifier delivers the buyer-facing confirmation. Implementations are
// best-effort and must not block settlement on delivery problems.
type Notifier interface {
	PaymentConfirmed(ctx context.Context, buyerID, itemName, orderID string, amount float64)
}
