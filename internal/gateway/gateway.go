// Package gateway abstracts the external payment provider.
//
// The core never talks to Stripe directly; it asks the gateway to mint a set
// of payment resources (product, price, payment link) for an agreed sale, and
// to deactivate them when a lease is cancelled or expires. Gateway calls are
// treated as slow and failable; callers decide what to do on error.
package gateway

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the payment provider could not be reached or
// returned a transport-level failure.
var ErrUnavailable = errors.New("payment gateway unavailable")

// Resources are the opaque references minted by the provider for one sale.
type Resources struct {
	ProductRef string `json:"productRef"`
	PriceRef   string `json:"priceRef"`
	LinkRef    string `json:"linkRef"`
	URL        string `json:"url"`
}

// CreateParams describes the sale a payment link is minted for.
// ItemID and BuyerID travel in link metadata so the completion webhook can
// identify the sale without any server-side session state.
type CreateParams struct {
	ItemID   string
	ItemName string
	BuyerID  string
	Amount   float64
}

// PaymentGateway mints and retires payment resources at the provider.
type PaymentGateway interface {
	// CreatePaymentResources creates the product, price, and payment link
	// for a sale at the given (already authorized) amount.
	CreatePaymentResources(ctx context.Context, params CreateParams) (*Resources, error)

	// Deactivate turns off the payment link and archives the product.
	// Safe to call more than once for the same resources.
	Deactivate(ctx context.Context, productRef, linkRef string) error
}
