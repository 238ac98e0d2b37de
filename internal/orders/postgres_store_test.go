//go:build integration

package orders

import (
	"context"
	"testing"
	"time"

	"github.com/terryong/negolah/internal/testutil"
)

func newPGOrder(id, buyerID string, amount float64) *Order {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &Order{
		ID:        id,
		ItemID:    "item-1",
		ItemName:  "Vintage Seiko Watch",
		BuyerID:   buyerID,
		Amount:    amount,
		Status:    StatusPendingShippingInfo,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPostgres_CreateAndGet(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	order := newPGOrder("ord-pg-1", "buyer-1", 85)
	order.PaymentRef = "pi_test_1"
	if err := store.Create(ctx, order); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, "ord-pg-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Amount != 85 {
		t.Errorf("expected amount 85, got %v", got.Amount)
	}
	if got.Status != StatusPendingShippingInfo {
		t.Errorf("expected pending_shipping_info, got %q", got.Status)
	}
	if got.PaymentRef != "pi_test_1" {
		t.Errorf("expected payment ref to round-trip, got %q", got.PaymentRef)
	}
	if got.NeedsReconciliation {
		t.Error("expected needsReconciliation to default to false")
	}
}

func TestPostgres_GetMissing(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	if _, err := store.Get(context.Background(), "no-such-order"); err != ErrOrderNotFound {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestPostgres_ListByBuyerNewestFirst(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	first := newPGOrder("ord-pg-2", "buyer-2", 10)
	second := newPGOrder("ord-pg-3", "buyer-2", 20)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	other := newPGOrder("ord-pg-4", "buyer-3", 30)

	for _, o := range []*Order{first, second, other} {
		if err := store.Create(ctx, o); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	got, err := store.ListByBuyer(ctx, "buyer-2", 0)
	if err != nil {
		t.Fatalf("ListByBuyer failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(got))
	}
	if got[0].ID != "ord-pg-3" || got[1].ID != "ord-pg-2" {
		t.Errorf("expected newest-first ordering, got %s then %s", got[0].ID, got[1].ID)
	}
}

func TestPostgres_UpdateShipping(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	if err := store.Create(ctx, newPGOrder("ord-pg-5", "buyer-4", 85)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	info := ShippingInfo{
		RecipientName: "Aisha",
		Phone:         "+60123456789",
		Address:       "12 Jalan Ampang, KL",
	}
	if err := store.UpdateShipping(ctx, "ord-pg-5", info, time.Now().UTC()); err != nil {
		t.Fatalf("UpdateShipping failed: %v", err)
	}

	got, err := store.Get(ctx, "ord-pg-5")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Errorf("expected status confirmed, got %q", got.Status)
	}
	if got.RecipientName != "Aisha" || got.Phone != "+60123456789" {
		t.Errorf("expected shipping details to persist, got %q / %q", got.RecipientName, got.Phone)
	}
}

func TestPostgres_UpdateShippingMissing(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	err := store.UpdateShipping(context.Background(), "no-such-order", ShippingInfo{
		RecipientName: "A", Phone: "1", Address: "X",
	}, time.Now())
	if err != ErrOrderNotFound {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
