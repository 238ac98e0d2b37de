// Package orders records completed sales and their fulfilment state.
//
// An order is created exactly once per successful sale by the settlement
// coordinator; this package never decides *whether* a sale happened, it only
// records it and tracks shipping afterwards.
package orders

import (
	"context"
	"errors"
	"time"
)

var (
	ErrOrderNotFound = errors.New("order not found")
)

// Status represents the fulfilment state of an order.
type Status string

const (
	// StatusPendingShippingInfo means payment cleared but the buyer has not
	// yet provided a shipping address.
	StatusPendingShippingInfo Status = "pending_shipping_info"
	StatusConfirmed           Status = "confirmed"
	StatusShipped             Status = "shipped"
	StatusDelivered           Status = "delivered"
	StatusCancelled           Status = "cancelled"
	StatusRefunded            Status = "refunded"
)

// Order is a completed sale.
//
// Amount is the negotiated price actually charged, which can legitimately be
// below the item's listed price. NeedsReconciliation marks orders whose
// amount was taken from the raw gateway total because the negotiated lease
// had already expired; operators should verify those by hand.
type Order struct {
	ID                  string    `json:"id"`
	ItemID              string    `json:"itemId"`
	ItemName            string    `json:"itemName,omitempty"`
	BuyerID             string    `json:"buyerId"`
	Amount              float64   `json:"amount"`
	Status              Status    `json:"status"`
	PaymentRef          string    `json:"paymentRef,omitempty"`
	NeedsReconciliation bool      `json:"needsReconciliation,omitempty"`
	RecipientName       string    `json:"recipientName,omitempty"`
	Phone               string    `json:"phone,omitempty"`
	Address             string    `json:"address,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// ShippingInfo is the buyer-provided delivery detail for an order.
type ShippingInfo struct {
	RecipientName string `json:"recipientName" binding:"required"`
	Phone         string `json:"phone" binding:"required"`
	Address       string `json:"address" binding:"required"`
}

// Store persists orders.
type Store interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// ListByBuyer returns the buyer's orders, newest first. A limit of zero
	// or less means no caller-imposed cap.
	ListByBuyer(ctx context.Context, buyerID string, limit int) ([]*Order, error)

	// UpdateShipping records shipping details and moves the order from
	// pending_shipping_info to confirmed. Returns ErrOrderNotFound if absent.
	UpdateShipping(ctx context.Context, id string, info ShippingInfo, at time.Time) error
}
