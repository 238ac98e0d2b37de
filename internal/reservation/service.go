package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/terryong/negolah/internal/catalog"
	"github.com/terryong/negolah/internal/gateway"
	"github.com/terryong/negolah/internal/logging"
	"github.com/terryong/negolah/internal/metrics"
)

// Authorizer re-validates an agreed price against the catalog of record.
type Authorizer interface {
	Authorize(ctx context.Context, itemID string, agreedPrice float64) error
}

// Service coordinates lease creation and cancellation with the payment
// gateway. Gateway resources are always minted before the lease is written
// and rolled back when the write fails, so the store never references
// resources that were not created and no live link goes untracked.
type Service struct {
	store      Store
	catalog    catalog.Store
	gateway    gateway.PaymentGateway
	authorizer Authorizer
	ttl        time.Duration
}

// NewService creates a reservation service. ttl is the lease lifetime.
func NewService(store Store, cat catalog.Store, gw gateway.PaymentGateway, auth Authorizer, ttl time.Duration) *Service {
	return &Service{
		store:      store,
		catalog:    cat,
		gateway:    gw,
		authorizer: auth,
		ttl:        ttl,
	}
}

// CreateOrGet returns the checkout lease for (buyer, item), creating it if
// none exists. The call is idempotent: while a lease is live, repeated calls
// return the original lease unchanged, even when the requested price
// differs. reused reports whether an existing lease was returned.
func (s *Service) CreateOrGet(ctx context.Context, buyerID, itemID string, agreedPrice float64) (r *Reservation, reused bool, err error) {
	key := Key{BuyerID: buyerID, ItemID: itemID}

	if existing, err := s.store.Get(ctx, key); err == nil {
		metrics.ReservationsReusedTotal.Inc()
		logging.L(ctx).Info("reusing existing checkout lease",
			"item_id", itemID,
			"expires_at", existing.ExpiresAt)
		return existing, true, nil
	} else if err != ErrReservationNotFound {
		return nil, false, err
	}

	// The guard runs on every create path. An agent that negotiated below
	// the floor gets stopped here, not at the gateway.
	if err := s.authorizer.Authorize(ctx, itemID, agreedPrice); err != nil {
		return nil, false, err
	}

	item, err := s.catalog.Get(ctx, itemID)
	if err != nil {
		return nil, false, err
	}
	if item.Status != catalog.StatusAvailable {
		return nil, false, catalog.ErrAlreadySold
	}

	// Mint gateway resources first. If the lease write fails afterwards we
	// deactivate them; the reverse order could hand out a lease whose link
	// does not exist.
	res, err := s.gateway.CreatePaymentResources(ctx, gateway.CreateParams{
		ItemID:   itemID,
		ItemName: item.Name,
		BuyerID:  buyerID,
		Amount:   agreedPrice,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create payment resources: %w", err)
	}

	now := time.Now()
	lease := &Reservation{
		BuyerID:     buyerID,
		ItemID:      itemID,
		ItemName:    item.Name,
		AgreedPrice: agreedPrice,
		ProductRef:  res.ProductRef,
		PriceRef:    res.PriceRef,
		LinkRef:     res.LinkRef,
		PaymentURL:  res.URL,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	if err := s.put(ctx, key, lease); err != nil {
		if err == ErrReservationExists {
			// Lost a race to a concurrent create. The winner's lease
			// stands; retire the resources we just minted.
			s.deactivate(ctx, res.ProductRef, res.LinkRef)
			winner, gerr := s.store.Get(ctx, key)
			if gerr != nil {
				return nil, false, gerr
			}
			metrics.ReservationsReusedTotal.Inc()
			return winner, true, nil
		}
		// Fail closed: a link we cannot track is a link we must not hand
		// out.
		s.deactivate(ctx, res.ProductRef, res.LinkRef)
		return nil, false, err
	}

	metrics.ReservationsCreatedTotal.Inc()
	logging.L(ctx).Info("checkout lease created",
		"item_id", itemID,
		"agreed_price", agreedPrice,
		"expires_at", lease.ExpiresAt)
	return lease, false, nil
}

// put writes the lease, clearing a physically lingering but logically
// expired record if one blocks the write.
func (s *Service) put(ctx context.Context, key Key, lease *Reservation) error {
	err := s.store.Put(ctx, lease, s.ttl)
	if err != ErrReservationExists {
		return err
	}
	if _, gerr := s.store.Get(ctx, key); gerr == ErrReservationNotFound {
		// The blocking record is expired. Clear it and try once more.
		if derr := s.store.Delete(ctx, key); derr != nil {
			return derr
		}
		return s.store.Put(ctx, lease, s.ttl)
	}
	return ErrReservationExists
}

// Cancel ends a lease early, deactivating its payment link. Cancelling an
// absent lease returns ErrReservationNotFound.
func (s *Service) Cancel(ctx context.Context, buyerID, itemID string) error {
	key := Key{BuyerID: buyerID, ItemID: itemID}
	lease, err := s.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := s.gateway.Deactivate(ctx, lease.ProductRef, lease.LinkRef); err != nil {
		// Keep the lease so the sweeper retries the deactivation later.
		return fmt.Errorf("deactivate payment link: %w", err)
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return err
	}
	metrics.ReservationsCancelledTotal.Inc()
	logging.L(ctx).Info("checkout lease cancelled", "item_id", itemID)
	return nil
}

// Release removes a lease without touching the payment link. Settlement
// calls this after a completed payment, when the link has served its
// purpose and must not be deactivated out from under the provider's
// confirmation page.
func (s *Service) Release(ctx context.Context, buyerID, itemID string) error {
	return s.store.Delete(ctx, Key{BuyerID: buyerID, ItemID: itemID})
}

// Get returns the live lease for (buyer, item).
func (s *Service) Get(ctx context.Context, buyerID, itemID string) (*Reservation, error) {
	return s.store.Get(ctx, Key{BuyerID: buyerID, ItemID: itemID})
}

// ListByBuyer returns the buyer's live leases.
func (s *Service) ListByBuyer(ctx context.Context, buyerID string) ([]*Reservation, error) {
	return s.store.ListByBuyer(ctx, buyerID)
}

// ListAll returns pending leases across all buyers, for seller-side review.
func (s *Service) ListAll(ctx context.Context, limit int) ([]*Reservation, error) {
	return s.store.ListAll(ctx, limit)
}

func (s *Service) deactivate(ctx context.Context, productRef, linkRef string) {
	if err := s.gateway.Deactivate(ctx, productRef, linkRef); err != nil {
		logging.L(ctx).Warn("failed to deactivate orphaned payment resources",
			"product_ref", productRef,
			"link_ref", linkRef,
			"error", err)
	}
}
