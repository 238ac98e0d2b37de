package reservation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/terryong/negolah/internal/catalog"
	"github.com/terryong/negolah/internal/gateway"
	"github.com/terryong/negolah/internal/negotiation"
)

const leaseTTL = 72 * time.Hour

type fixture struct {
	store   *MemoryStore
	catalog *catalog.MemoryStore
	gateway *gateway.Fake
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   NewMemoryStore(),
		catalog: catalog.NewMemoryStore(),
		gateway: gateway.NewFake(),
	}
	auth := negotiation.NewService(f.catalog, 0.70)
	f.service = NewService(f.store, f.catalog, f.gateway, auth, leaseTTL)

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

func TestCreateOrGetCreatesLease(t *testing.T) {
	f := newFixture(t)

	lease, reused, err := f.service.CreateOrGet(context.Background(), "buyer-1", "item-1", 85)
	if err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}
	if reused {
		t.Error("reused = true for first create")
	}
	if lease.AgreedPrice != 85 {
		t.Errorf("agreed price = %v, want 85", lease.AgreedPrice)
	}
	if lease.PaymentURL == "" || lease.LinkRef == "" {
		t.Error("lease missing gateway resources")
	}
	if got := lease.ExpiresAt.Sub(lease.CreatedAt); got != leaseTTL {
		t.Errorf("lease lifetime = %v, want %v", got, leaseTTL)
	}
	if len(f.gateway.CreateCalls) != 1 {
		t.Fatalf("gateway create calls = %d, want 1", len(f.gateway.CreateCalls))
	}
	if f.gateway.CreateCalls[0].Amount != 85 {
		t.Errorf("gateway amount = %v, want 85", f.gateway.CreateCalls[0].Amount)
	}
}

func TestCreateOrGetIsIdempotent(t *testing.T) {
	f := newFixture(t)

	first, _, err := f.service.CreateOrGet(context.Background(), "buyer-1", "item-1", 85)
	if err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}

	// A repeat with a different price still returns the original lease.
	second, reused, err := f.service.CreateOrGet(context.Background(), "buyer-1", "item-1", 90)
	if err != nil {
		t.Fatalf("CreateOrGet repeat: %v", err)
	}
	if !reused {
		t.Error("reused = false for repeat call")
	}
	if second.AgreedPrice != 85 {
		t.Errorf("repeat agreed price = %v, want original 85", second.AgreedPrice)
	}
	if second.PaymentURL != first.PaymentURL {
		t.Errorf("repeat payment URL = %q, want original %q", second.PaymentURL, first.PaymentURL)
	}
	if len(f.gateway.CreateCalls) != 1 {
		t.Errorf("gateway create calls = %d, want 1 (no duplicate links)", len(f.gateway.CreateCalls))
	}
}

func TestCreateOrGetDifferentPairsGetDistinctLeases(t *testing.T) {
	f := newFixture(t)
	if err := f.catalog.Create(context.Background(), &catalog.Item{
		ID: "item-2", Name: "Lamp", ListedPrice: 50, FloorPrice: 35,
		Status: catalog.StatusAvailable,
	}); err != nil {
		t.Fatalf("seed item: %v", err)
	}

	a, _, err := f.service.CreateOrGet(context.Background(), "buyer-1", "item-1", 85)
	if err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}
	b, _, err := f.service.CreateOrGet(context.Background(), "buyer-1", "item-2", 40)
	if err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}
	c, _, err := f.service.CreateOrGet(context.Background(), "buyer-2", "item-1", 85)
	if err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}
	if a.PaymentURL == b.PaymentURL || a.PaymentURL == c.PaymentURL {
		t.Error("distinct (buyer, item) pairs share a payment URL")
	}
	if len(f.gateway.CreateCalls) != 3 {
		t.Errorf("gateway create calls = %d, want 3", len(f.gateway.CreateCalls))
	}
}

func TestCreateOrGetGuardsPrice(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.service.CreateOrGet(context.Background(), "buyer-1", "item-1", 60)
	if !errors.Is(err, negotiation.ErrBelowFloor) {
		t.Fatalf("CreateOrGet(60) = %v, want ErrBelowFloor", err)
	}
	if len(f.gateway.CreateCalls) != 0 {
		t.Error("gateway called despite guard rejection")
	}
	if _, err := f.store.Get(context.Background(), Key{"buyer-1", "item-1"}); err != ErrReservationNotFound {
		t.Error("lease written despite guard rejection")
	}
}

func TestCreateOrGetRejectsSoldItem(t *testing.T) {
	f := newFixture(t)
	if err := f.catalog.MarkSold(context.Background(), "item-1", "someone-else", time.Now()); err != nil {
		t.Fatalf("mark sold: %v", err)
	}

	_, _, err := f.service.CreateOrGet(context.Background(), "buyer-1", "item-1", 85)
	if !errors.Is(err, catalog.ErrAlreadySold) {
		t.Fatalf("CreateOrGet on sold item = %v, want ErrAlreadySold", err)
	}
	if len(f.gateway.CreateCalls) != 0 {
		t.Error("gateway called for sold item")
	}
}

func TestCreateOrGetGatewayFailure(t *testing.T) {
	f := newFixture(t)
	f.gateway.CreateErr = gateway.ErrUnavailable

	_, _, err := f.service.CreateOrGet(context.Background(), "buyer-1", "item-1", 85)
	if !errors.Is(err, gateway.ErrUnavailable) {
		t.Fatalf("CreateOrGet = %v, want ErrUnavailable", err)
	}
	if _, err := f.store.Get(context.Background(), Key{"buyer-1", "item-1"}); err != ErrReservationNotFound {
		t.Error("lease written despite gateway failure")
	}
}

// failingStore wraps a MemoryStore and fails Put, simulating a lease store
// outage after gateway resources were minted.
type failingStore struct {
	*MemoryStore
}

func (f *failingStore) Put(context.Context, *Reservation, time.Duration) error {
	return ErrStoreUnavailable
}

func TestCreateOrGetStoreFailureRollsBackGateway(t *testing.T) {
	f := newFixture(t)
	broken := &failingStore{MemoryStore: f.store}
	auth := negotiation.NewService(f.catalog, 0.70)
	svc := NewService(broken, f.catalog, f.gateway, auth, leaseTTL)

	_, _, err := svc.CreateOrGet(context.Background(), "buyer-1", "item-1", 85)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("CreateOrGet = %v, want ErrStoreUnavailable", err)
	}
	// The minted link was rolled back, so no payable link is untracked.
	if len(f.gateway.Deactivated) != 1 {
		t.Errorf("deactivations = %d, want 1", len(f.gateway.Deactivated))
	}
}

func TestCancelDeactivatesAndDeletes(t *testing.T) {
	f := newFixture(t)
	lease, _, err := f.service.CreateOrGet(context.Background(), "buyer-1", "item-1", 85)
	if err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}

	if err := f.service.Cancel(context.Background(), "buyer-1", "item-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := f.gateway.DeactivateCount(lease.ProductRef); got != 1 {
		t.Errorf("deactivations = %d, want 1", got)
	}
	if _, err := f.service.Get(context.Background(), "buyer-1", "item-1"); err != ErrReservationNotFound {
		t.Error("lease still present after cancel")
	}
}

func TestCancelAbsentLease(t *testing.T) {
	f := newFixture(t)
	if err := f.service.Cancel(context.Background(), "buyer-1", "item-1"); !errors.Is(err, ErrReservationNotFound) {
		t.Errorf("Cancel = %v, want ErrReservationNotFound", err)
	}
}

func TestCancelKeepsLeaseWhenDeactivationFails(t *testing.T) {
	f := newFixture(t)
	if _, _, err := f.service.CreateOrGet(context.Background(), "buyer-1", "item-1", 85); err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}
	f.gateway.DeactErr = gateway.ErrUnavailable

	if err := f.service.Cancel(context.Background(), "buyer-1", "item-1"); err == nil {
		t.Fatal("Cancel succeeded despite deactivation failure")
	}
	// The lease survives so the sweeper can retry the deactivation.
	if _, err := f.service.Get(context.Background(), "buyer-1", "item-1"); err != nil {
		t.Errorf("lease gone after failed cancel: %v", err)
	}
}

func TestReleaseKeepsPaymentLinkActive(t *testing.T) {
	f := newFixture(t)
	lease, _, err := f.service.CreateOrGet(context.Background(), "buyer-1", "item-1", 85)
	if err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}

	if err := f.service.Release(context.Background(), "buyer-1", "item-1"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := f.gateway.DeactivateCount(lease.ProductRef); got != 0 {
		t.Errorf("deactivations = %d, want 0 after settlement release", got)
	}
	if _, err := f.service.Get(context.Background(), "buyer-1", "item-1"); err != ErrReservationNotFound {
		t.Error("lease still present after release")
	}
}

func TestListByBuyer(t *testing.T) {
	f := newFixture(t)
	if err := f.catalog.Create(context.Background(), &catalog.Item{
		ID: "item-2", Name: "Lamp", ListedPrice: 50, FloorPrice: 35,
		Status: catalog.StatusAvailable,
	}); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	for _, itemID := range []string{"item-1", "item-2"} {
		if _, _, err := f.service.CreateOrGet(context.Background(), "buyer-1", itemID, 85); err != nil {
			t.Fatalf("CreateOrGet(%s): %v", itemID, err)
		}
	}

	leases, err := f.service.ListByBuyer(context.Background(), "buyer-1")
	if err != nil {
		t.Fatalf("ListByBuyer: %v", err)
	}
	if len(leases) != 2 {
		t.Errorf("leases = %d, want 2", len(leases))
	}
	other, err := f.service.ListByBuyer(context.Background(), "buyer-2")
	if err != nil {
		t.Fatalf("ListByBuyer: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("buyer-2 leases = %d, want 0", len(other))
	}
}

func TestListAllSpansBuyers(t *testing.T) {
	f := newFixture(t)
	if err := f.catalog.Create(context.Background(), &catalog.Item{
		ID: "item-2", Name: "Lamp", ListedPrice: 50, FloorPrice: 35,
		Status: catalog.StatusAvailable,
	}); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	if _, _, err := f.service.CreateOrGet(context.Background(), "buyer-1", "item-1", 85); err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}
	if _, _, err := f.service.CreateOrGet(context.Background(), "buyer-2", "item-2", 40); err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}

	leases, err := f.service.ListAll(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(leases) != 2 {
		t.Fatalf("leases = %d, want 2", len(leases))
	}

	capped, err := f.service.ListAll(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(capped) != 1 {
		t.Errorf("capped leases = %d, want 1", len(capped))
	}
}
