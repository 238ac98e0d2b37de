package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/terryong/negolah/internal/catalog"
	"github.com/terryong/negolah/internal/gateway"
	"github.com/terryong/negolah/internal/negotiation"
	"github.com/terryong/negolah/internal/orders"
	"github.com/terryong/negolah/internal/reservation"
)

type notifierSpy struct {
	calls []string // orderID per call
}

func (n *notifierSpy) PaymentConfirmed(_ context.Context, _, _, orderID string, _ float64) {
	n.calls = append(n.calls, orderID)
}

type fixture struct {
	catalog  *catalog.MemoryStore
	orders   *orders.MemoryStore
	leases   *reservation.Service
	gateway  *gateway.Fake
	notifier *notifierSpy
	coord    *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		catalog:  catalog.NewMemoryStore(),
		orders:   orders.NewMemoryStore(),
		gateway:  gateway.NewFake(),
		notifier: &notifierSpy{},
	}
	auth := negotiation.NewService(f.catalog, 0.70)
	f.leases = reservation.NewService(reservation.NewMemoryStore(), f.catalog, f.gateway, auth, 72*time.Hour)
	f.coord = NewCoordinator(f.catalog, f.orders, f.leases, f.notifier)

	err := f.catalog.Create(context.Background(), &catalog.Item{
		ID:          "item-1",
		Name:        "Vintage Watch",
		ListedPrice: 100,
		FloorPrice:  70,
		Status:      catalog.StatusAvailable,
	})
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return f
}

func (f *fixture) lease(t *testing.T, buyerID string, price float64) *reservation.Reservation {
	t.Helper()
	lease, _, err := f.leases.CreateOrGet(context.Background(), buyerID, "item-1", price)
	if err != nil {
		t.Fatalf("create lease: %v", err)
	}
	return lease
}

func TestFinalizeCreatesOrderAtAgreedPrice(t *testing.T) {
	f := newFixture(t)
	lease := f.lease(t, "buyer-1", 85)

	// The provider reports a slightly different amount; the lease wins.
	res, err := f.coord.Finalize(context.Background(), TriggerWebhook, "item-1", "buyer-1", 85.00, "pi_123")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if res.Outcome != OutcomeFinalized {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeFinalized)
	}

	order, err := f.orders.Get(context.Background(), res.OrderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Amount != 85 {
		t.Errorf("order amount = %v, want lease price 85", order.Amount)
	}
	if order.Status != orders.StatusPendingShippingInfo {
		t.Errorf("order status = %s, want %s", order.Status, orders.StatusPendingShippingInfo)
	}
	if order.NeedsReconciliation {
		t.Error("order flagged for reconciliation with a live lease")
	}
	if order.PaymentRef != "pi_123" {
		t.Errorf("payment ref = %q, want pi_123", order.PaymentRef)
	}

	item, err := f.catalog.Get(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Status != catalog.StatusSold || item.BuyerID != "buyer-1" {
		t.Errorf("item = %s/%s, want sold/buyer-1", item.Status, item.BuyerID)
	}

	// The lease is released, but the consumed link is not deactivated.
	if _, err := f.leases.Get(context.Background(), "buyer-1", "item-1"); !errors.Is(err, reservation.ErrReservationNotFound) {
		t.Error("lease still present after finalization")
	}
	if got := f.gateway.DeactivateCount(lease.ProductRef); got != 0 {
		t.Errorf("deactivations = %d, want 0", got)
	}

	if len(f.notifier.calls) != 1 || f.notifier.calls[0] != order.ID {
		t.Errorf("notifier calls = %v, want exactly [%s]", f.notifier.calls, order.ID)
	}
}

func TestFinalizeRacingTriggersProduceOneOrder(t *testing.T) {
	f := newFixture(t)
	f.lease(t, "buyer-1", 85)

	first, err := f.coord.Finalize(context.Background(), TriggerWebhook, "item-1", "buyer-1", 85, "pi_123")
	if err != nil {
		t.Fatalf("webhook Finalize: %v", err)
	}
	second, err := f.coord.Finalize(context.Background(), TriggerManual, "item-1", "buyer-1", 85, "manual")
	if err != nil {
		t.Fatalf("manual Finalize: %v", err)
	}

	if first.Outcome != OutcomeFinalized {
		t.Errorf("first outcome = %s, want %s", first.Outcome, OutcomeFinalized)
	}
	if second.Outcome != OutcomeAlreadySold {
		t.Errorf("second outcome = %s, want %s", second.Outcome, OutcomeAlreadySold)
	}
	if second.OrderID != "" {
		t.Errorf("losing trigger produced order %q", second.OrderID)
	}

	got, err := f.orders.ListByBuyer(context.Background(), "buyer-1", 0)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("orders = %d, want exactly 1", len(got))
	}
	if len(f.notifier.calls) != 1 {
		t.Errorf("notifier calls = %d, want 1", len(f.notifier.calls))
	}
}

func TestFinalizeWithoutLeaseFlagsReconciliation(t *testing.T) {
	f := newFixture(t)

	// No lease: the payment landed after the lease expired and was swept.
	res, err := f.coord.Finalize(context.Background(), TriggerWebhook, "item-1", "buyer-1", 92.5, "pi_late")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	order, err := f.orders.Get(context.Background(), res.OrderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Amount != 92.5 {
		t.Errorf("order amount = %v, want provider amount 92.5", order.Amount)
	}
	if !order.NeedsReconciliation {
		t.Error("order not flagged for reconciliation without a lease")
	}
}

func TestFinalizeUnknownItem(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Finalize(context.Background(), TriggerManual, "nope", "buyer-1", 10, "")
	if !errors.Is(err, catalog.ErrItemNotFound) {
		t.Errorf("Finalize = %v, want ErrItemNotFound", err)
	}
}

func TestFinalizeConcurrentTriggers(t *testing.T) {
	f := newFixture(t)
	f.lease(t, "buyer-1", 85)

	type outcome struct {
		res *Result
		err error
	}
	results := make(chan outcome, 2)
	for _, trig := range []Trigger{TriggerWebhook, TriggerManual} {
		go func(trig Trigger) {
			res, err := f.coord.Finalize(context.Background(), trig, "item-1", "buyer-1", 85, string(trig))
			results <- outcome{res, err}
		}(trig)
	}

	finalized := 0
	for i := 0; i < 2; i++ {
		out := <-results
		if out.err != nil {
			t.Fatalf("Finalize: %v", out.err)
		}
		if out.res.Outcome == OutcomeFinalized {
			finalized++
		}
	}
	if finalized != 1 {
		t.Errorf("finalized outcomes = %d, want exactly 1", finalized)
	}

	got, err := f.orders.ListByBuyer(context.Background(), "buyer-1", 0)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("orders = %d, want exactly 1", len(got))
	}
}
