// Package catalog provides access to the item listing store.
//
// The catalog is the system of record for listed and floor prices and for an
// item's sale status. The negotiation and settlement layers only ever read
// prices from here; they never write them. The single mutation this package
// exposes is the one-time available -> sold transition.
package catalog

import (
	"context"
	"errors"
	"time"
)

var (
	ErrItemNotFound = errors.New("item not found")
	ErrAlreadySold  = errors.New("item already sold")
)

// ItemStatus represents the sale state of an item.
type ItemStatus string

const (
	StatusAvailable ItemStatus = "available"
	StatusSold      ItemStatus = "sold"
)

// Item is a catalog listing.
//
// FloorPrice may be zero, meaning the seller never set one; callers must
// apply the configured default ratio against ListedPrice in that case.
type Item struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ListedPrice float64    `json:"listedPrice"`
	FloorPrice  float64    `json:"floorPrice,omitempty"`
	Status      ItemStatus `json:"status"`
	BuyerID     string     `json:"buyerId,omitempty"`
	SoldAt      *time.Time `json:"soldAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// EffectiveFloor returns the item's floor price, falling back to
// defaultRatio * listed price when the seller never set a floor.
func (i *Item) EffectiveFloor(defaultRatio float64) float64 {
	if i.FloorPrice > 0 {
		return i.FloorPrice
	}
	return i.ListedPrice * defaultRatio
}

// Store persists catalog items.
type Store interface {
	// Get returns the item or ErrItemNotFound.
	Get(ctx context.Context, id string) (*Item, error)

	// Create inserts a new listing. Used by seeding and admin flows.
	Create(ctx context.Context, item *Item) error

	// MarkSold performs the conditional available -> sold transition,
	// recording the buyer. Returns ErrAlreadySold if the item is no longer
	// available, so exactly one caller wins a finalization race.
	MarkSold(ctx context.Context, id, buyerID string, at time.Time) error

	// ListAvailable returns available listings, newest first. A limit of
	// zero or less means no caller-imposed cap.
	ListAvailable(ctx context.Context, limit int) ([]*Item, error)
}
