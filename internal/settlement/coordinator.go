package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/terryong/negolah/internal/catalog"
	"github.com/terryong/negolah/internal/idgen"
	"github.com/terryong/negolah/internal/logging"
	"github.com/terryong/negolah/internal/metrics"
	"github.com/terryong/negolah/internal/orders"
	"github.com/terryong/negolah/internal/reservation"
)

// Coordinator finalizes completed payments. Safe for concurrent use; the
// catalog's conditional sold transition is the only synchronization needed.
type Coordinator struct {
	catalog  catalog.Store
	orders   orders.Store
	leases   Leases
	notifier Notifier
}

// NewCoordinator creates a finalization coordinator. notifier may be nil.
func NewCoordinator(cat catalog.Store, ord orders.Store, leases Leases, notifier Notifier) *Coordinator {
	return &Coordinator{catalog: cat, orders: ord, leases: leases, notifier: notifier}
}

// Finalize records a completed payment for (buyer, item). amountPaid is
// what the provider says was charged; paymentRef is the provider's own
// reference for the payment. The call is idempotent: once any trigger has
// finalized the sale, every later attempt returns OutcomeAlreadySold.
func (c *Coordinator) Finalize(ctx context.Context, trigger Trigger, itemID, buyerID string, amountPaid float64, paymentRef string) (*Result, error) {
	log := logging.L(ctx).With("trigger", string(trigger), "item_id", itemID)

	item, err := c.catalog.Get(ctx, itemID)
	if err != nil {
		metrics.FinalizationsTotal.WithLabelValues(string(trigger), "error").Inc()
		return nil, err
	}

	// The winner is decided here: the sold transition only succeeds while
	// the item is still available.
	now := time.Now()
	if err := c.catalog.MarkSold(ctx, itemID, buyerID, now); err != nil {
		if errors.Is(err, catalog.ErrAlreadySold) {
			metrics.FinalizationsTotal.WithLabelValues(string(trigger), "already_sold").Inc()
			log.Info("sale already finalized, skipping")
			return &Result{Outcome: OutcomeAlreadySold}, nil
		}
		metrics.FinalizationsTotal.WithLabelValues(string(trigger), "error").Inc()
		return nil, fmt.Errorf("mark item sold: %w", err)
	}

	// The lease's agreed price is the price of record. If the lease is
	// gone (expired between payment and webhook) we fall back to the
	// provider's amount and flag the order for a human to reconcile.
	amount := amountPaid
	needsReconciliation := false
	lease, err := c.leases.Get(ctx, buyerID, itemID)
	switch {
	case err == nil:
		amount = lease.AgreedPrice
	case errors.Is(err, reservation.ErrReservationNotFound):
		needsReconciliation = true
		log.Warn("no lease at finalization, using provider amount",
			"amount_paid", amountPaid)
	default:
		// Store trouble must not abort settlement; the payment already
		// happened. Record the provider amount and flag it.
		needsReconciliation = true
		log.Warn("lease store unavailable at finalization", "error", err)
	}

	order := &orders.Order{
		ID:                  idgen.WithPrefix("ord"),
		ItemID:              itemID,
		ItemName:            item.Name,
		BuyerID:             buyerID,
		Amount:              amount,
		Status:              orders.StatusPendingShippingInfo,
		PaymentRef:          paymentRef,
		NeedsReconciliation: needsReconciliation,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := c.orders.Create(ctx, order); err != nil {
		// The item is sold but the order write failed. Surface the error;
		// the payment reference in the logs is enough to rebuild the
		// order by hand.
		metrics.FinalizationsTotal.WithLabelValues(string(trigger), "error").Inc()
		log.Error("sold item has no order record", "payment_ref", paymentRef, "error", err)
		return nil, fmt.Errorf("create order: %w", err)
	}

	// The link was consumed by the payment; release the lease without
	// deactivating anything.
	if err := c.leases.Release(ctx, buyerID, itemID); err != nil {
		log.Warn("failed to release lease after finalization", "error", err)
	}

	if c.notifier != nil {
		c.notifier.PaymentConfirmed(ctx, buyerID, item.Name, order.ID, amount)
	}

	metrics.FinalizationsTotal.WithLabelValues(string(trigger), "finalized").Inc()
	log.Info("sale finalized",
		"order_id", order.ID,
		"amount", amount,
		"needs_reconciliation", needsReconciliation)
	return &Result{Outcome: OutcomeFinalized, OrderID: order.ID}, nil
}
