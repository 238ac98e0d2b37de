package gateway

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory PaymentGateway for tests and demo mode. It records
// every call and can be told to fail.
type Fake struct {
	mu          sync.Mutex
	nextID      int
	CreateCalls []CreateParams
	Deactivated []string // productRef values, in call order
	CreateErr   error
	DeactErr    error
}

// NewFake creates a fake payment gateway.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) CreatePaymentResources(_ context.Context, params CreateParams) (*Resources, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CreateErr != nil {
		return nil, f.CreateErr
	}

	f.nextID++
	f.CreateCalls = append(f.CreateCalls, params)
	return &Resources{
		ProductRef: fmt.Sprintf("prod_fake%d", f.nextID),
		PriceRef:   fmt.Sprintf("price_fake%d", f.nextID),
		LinkRef:    fmt.Sprintf("plink_fake%d", f.nextID),
		URL:        fmt.Sprintf("https://pay.example.test/%d", f.nextID),
	}, nil
}

func (f *Fake) Deactivate(_ context.Context, productRef, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.DeactErr != nil {
		return f.DeactErr
	}
	f.Deactivated = append(f.Deactivated, productRef)
	return nil
}

// DeactivateCount returns how many times productRef was deactivated.
func (f *Fake) DeactivateCount(productRef string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ref := range f.Deactivated {
		if ref == productRef {
			n++
		}
	}
	return n
}

// Compile-time assertion that Fake implements PaymentGateway.
var _ PaymentGateway = (*Fake)(nil)
