// Package reservation manages checkout leases.
//
// A lease records that a buyer and an item have an agreed price and a live
// payment link. Leases are keyed by (buyer, item), carry a TTL, and are
// tracked in an expiry-ordered index so the sweeper can find overdue ones
// without scanning the whole keyspace. The payment gateway resources a lease
// references are created before the lease is written, so a lease never
// points at links that do not exist.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrReservationNotFound is returned when no live lease exists for the
	// (buyer, item) pair.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrReservationExists is returned by Put when another lease for the
	// same (buyer, item) pair was written first.
	ErrReservationExists = errors.New("reservation already exists")

	// ErrStoreUnavailable is returned when the lease store cannot be
	// reached. Callers fail closed: no payment link is handed out when
	// lease state cannot be recorded.
	ErrStoreUnavailable = errors.New("reservation store unavailable")
)

// Reservation is one checkout lease.
type Reservation struct {
	BuyerID     string  `json:"buyerId"`
	ItemID      string  `json:"itemId"`
	ItemName    string  `json:"itemName"`
	AgreedPrice float64 `json:"agreedPrice"`

	// Gateway resource references, needed to deactivate the link when the
	// lease ends without a sale.
	ProductRef string `json:"productRef"`
	PriceRef   string `json:"priceRef"`
	LinkRef    string `json:"linkRef"`
	PaymentURL string `json:"paymentUrl"`

	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Key identifies a lease.
type Key struct {
	BuyerID string
	ItemID  string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.BuyerID, k.ItemID)
}

// Store persists leases. Implementations keep the lease record and the
// expiry index as close to atomic as the backend allows; a lease record
// without an index entry would never be swept, so Put writes the index
// entry in the same operation.
type Store interface {
	// Put writes a new lease with the given TTL and indexes it by expiry.
	// Returns ErrReservationExists if a live lease for the same key was
	// written concurrently.
	Put(ctx context.Context, r *Reservation, ttl time.Duration) error

	// Get returns the live lease for the key or ErrReservationNotFound.
	// A lease past its expiry is reported as not found even if the backend
	// still holds the record.
	Get(ctx context.Context, key Key) (*Reservation, error)

	// GetAny returns the lease record regardless of logical expiry, as
	// long as the backend still holds it. The sweeper uses it to recover
	// gateway refs for deactivation after the lease has lapsed.
	GetAny(ctx context.Context, key Key) (*Reservation, error)

	// Delete removes the lease record and its index entry. Deleting an
	// absent lease is not an error.
	Delete(ctx context.Context, key Key) error

	// ListByBuyer returns all live leases held by one buyer.
	ListByBuyer(ctx context.Context, buyerID string) ([]*Reservation, error)

	// ListAll returns up to limit live leases across all buyers, oldest
	// first. Zero or less means no caller-imposed cap. Seller-side
	// inspection only.
	ListAll(ctx context.Context, limit int) ([]*Reservation, error)

	// ExpiredKeys returns up to limit keys whose recorded expiry is at or
	// before now, oldest first.
	ExpiredKeys(ctx context.Context, now time.Time, limit int64) ([]Key, error)

	// RemoveIndexEntry drops a key from the expiry index without touching
	// the lease record. Used when the record is already gone.
	RemoveIndexEntry(ctx context.Context, key Key) error
}
