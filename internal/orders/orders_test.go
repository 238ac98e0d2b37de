package orders

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestOrder(id, buyerID string) *Order {
	now := time.Now()
	return &Order{
		ID:         id,
		ItemID:     "itm_1",
		ItemName:   "Vintage camera",
		BuyerID:    buyerID,
		Amount:     90,
		Status:     StatusPendingShippingInfo,
		PaymentRef: "pi_123",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, newTestOrder("ord_1", "buyer1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	order, err := store.Get(ctx, "ord_1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if order.Status != StatusPendingShippingInfo {
		t.Errorf("expected pending_shipping_info, got %s", order.Status)
	}
	if order.Amount != 90 {
		t.Errorf("expected amount 90, got %f", order.Amount)
	}
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestMemoryStore_UpdateShipping(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Create(ctx, newTestOrder("ord_1", "buyer1"))

	info := ShippingInfo{
		RecipientName: "Terry Ong",
		Phone:         "+60123456789",
		Address:       "1 Jalan Example, Kuala Lumpur",
	}
	if err := store.UpdateShipping(ctx, "ord_1", info, time.Now()); err != nil {
		t.Fatalf("update shipping failed: %v", err)
	}

	order, _ := store.Get(ctx, "ord_1")
	if order.Status != StatusConfirmed {
		t.Errorf("expected confirmed after shipping info, got %s", order.Status)
	}
	if order.RecipientName != "Terry Ong" || order.Address == "" {
		t.Errorf("shipping info not recorded: %+v", order)
	}
}

func TestMemoryStore_UpdateShippingMissing(t *testing.T) {
	store := NewMemoryStore()
	err := store.UpdateShipping(context.Background(), "missing", ShippingInfo{}, time.Now())
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestMemoryStore_ListByBuyer(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := newTestOrder("ord_1", "buyer1")
	first.CreatedAt = time.Now().Add(-time.Hour)
	_ = store.Create(ctx, first)
	_ = store.Create(ctx, newTestOrder("ord_2", "buyer1"))
	_ = store.Create(ctx, newTestOrder("ord_3", "buyer2"))

	result, err := store.ListByBuyer(ctx, "buyer1", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(result))
	}
	if result[0].ID != "ord_2" {
		t.Errorf("expected newest first, got %s", result[0].ID)
	}
}
