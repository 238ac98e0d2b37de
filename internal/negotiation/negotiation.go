// Package negotiation implements the deterministic offer policy and the
// server-side price guard.
//
// Flow:
//  1. The agent evaluates a buyer offer against the item's floor price
//  2. Accept / counter / reject is decided by code, not by the model
//  3. Before any payment link is minted, the price guard re-checks the
//     agreed price against the catalog of record
//
// The guard is the security boundary: nothing the calling agent asserts
// about floors or thresholds is ever trusted, and the floor value itself is
// only ever disclosed on a terminal rejection.
package negotiation

import (
	"context"
	"errors"

	"github.com/terryong/negolah/internal/catalog"
)

var (
	// ErrBelowFloor is returned when a proposed price is under the item's
	// floor. The message deliberately does not contain the floor value.
	ErrBelowFloor = errors.New("price below the acceptable minimum")

	// ErrNonPositivePrice is returned for zero or negative prices.
	ErrNonPositivePrice = errors.New("price must be a positive number")

	// ErrImplausiblePrice is returned when a price exceeds the sanity
	// ceiling of 10x the listed price.
	ErrImplausiblePrice = errors.New("price is implausibly high")
)

// implausibleMultiplier is the sanity ceiling against corrupted or
// hallucinated inputs: no sale may exceed this multiple of the listed price.
const implausibleMultiplier = 10

// Decision classifies the outcome of an offer evaluation.
type Decision string

const (
	// DecisionAccept means the offer meets or exceeds the listed price.
	DecisionAccept Decision = "accept"
	// DecisionAcceptAtFloor means the offer landed at or below the absolute
	// floor but a discount grant made it acceptable. Final, non-negotiable.
	DecisionAcceptAtFloor Decision = "accept_at_floor"
	// DecisionCounter means the offer is workable but low; a counter price
	// strictly above the offer is proposed.
	DecisionCounter Decision = "counter"
	// DecisionRejectAtFloor means the offer is under the absolute floor.
	// This is the only decision that discloses the floor value.
	DecisionRejectAtFloor Decision = "reject_at_floor"
	// DecisionItemNotFound means the item could not be resolved; no price
	// computation was performed.
	DecisionItemNotFound Decision = "item_not_found"
)

// Evaluation is the result of evaluating one offer.
type Evaluation struct {
	Decision     Decision `json:"decision"`
	ItemID       string   `json:"itemId"`
	OfferedPrice float64  `json:"offeredPrice"`

	// AcceptedPrice is set for accept and accept_at_floor decisions.
	AcceptedPrice float64 `json:"acceptedPrice,omitempty"`
	// CounterPrice is set for counter decisions. Always strictly greater
	// than OfferedPrice.
	CounterPrice float64 `json:"counterPrice,omitempty"`
	// FloorPrice is disclosed only on reject_at_floor.
	FloorPrice float64 `json:"floorPrice,omitempty"`

	// Message is a caller-safe negotiation-continuation line for the agent
	// to relay. It never leaks the adjusted threshold.
	Message string `json:"message"`
}

// EvaluateRequest contains the parameters for an offer evaluation.
type EvaluateRequest struct {
	ItemID string `json:"itemId" binding:"required"`
	// OfferedPrice is the buyer's current offer.
	OfferedPrice float64 `json:"offeredPrice" binding:"required"`
	// ExtraDiscountPercent is a discount the agent has granted (0, 5, or 10
	// in practice); it lowers the accept threshold but never below the floor.
	ExtraDiscountPercent float64 `json:"extraDiscountPercent"`
}

// CatalogReader is the read-only slice of the catalog the policy needs.
type CatalogReader interface {
	Get(ctx context.Context, id string) (*catalog.Item, error)
}
