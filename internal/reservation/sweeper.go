package reservation

import (
	"context"
	"time"

	"github.com/terryong/negolah/internal/gateway"
	"github.com/terryong/negolah/internal/logging"
	"github.com/terryong/negolah/internal/metrics"
)

// sweepBatchSize bounds one sweep pass so a large backlog cannot hold the
// loop for an entire interval.
const sweepBatchSize = 200

// Sweeper reaps expired leases: it deactivates their payment links and
// removes the records. It is the cleanup of last resort; leases normally
// end through settlement or an explicit cancel.
type Sweeper struct {
	store   Store
	gateway gateway.PaymentGateway
}

// NewSweeper creates a sweeper over the given store and gateway.
func NewSweeper(store Store, gw gateway.PaymentGateway) *Sweeper {
	return &Sweeper{store: store, gateway: gw}
}

// Sweep performs one pass and returns the number of leases reaped. A
// failure on one lease is logged and skipped; the lease stays indexed and
// the next pass retries it. Only listing the expired keys can fail the
// whole pass.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	keys, err := s.store.ExpiredKeys(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, key := range keys {
		lease, err := s.store.GetAny(ctx, key)
		if err == ErrReservationNotFound {
			// The record is already gone (settled, cancelled, or dropped
			// by the backend). Only the index entry is stale.
			if err := s.store.RemoveIndexEntry(ctx, key); err != nil {
				logging.L(ctx).Warn("failed to drop stale lease index entry",
					"lease", key.String(),
					"error", err)
			}
			continue
		}
		if err != nil {
			logging.L(ctx).Warn("failed to read expired lease",
				"lease", key.String(),
				"error", err)
			continue
		}

		// Deactivate before delete. If deactivation fails the lease stays,
		// and the next pass tries again; an expired lease must never keep
		// a payable link.
		if err := s.gateway.Deactivate(ctx, lease.ProductRef, lease.LinkRef); err != nil {
			logging.L(ctx).Warn("failed to deactivate expired payment link",
				"lease", key.String(),
				"link_ref", lease.LinkRef,
				"error", err)
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			logging.L(ctx).Warn("failed to delete expired lease",
				"lease", key.String(),
				"error", err)
			continue
		}

		reaped++
		metrics.LeasesReapedTotal.Inc()
		logging.L(ctx).Info("reaped expired checkout lease",
			"lease", key.String(),
			"item_id", lease.ItemID,
			"expired_at", lease.ExpiresAt)
	}

	metrics.SweepsTotal.Inc()
	return reaped, nil
}
