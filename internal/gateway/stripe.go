package gateway

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"github.com/terryong/negolah/internal/metrics"
)

// callTimeout bounds every provider call so a slow Stripe API cannot stall
// the negotiation flow.
const callTimeout = 15 * time.Second

// StripeGateway implements PaymentGateway against the Stripe API using
// Products, Prices, and Payment Links.
type StripeGateway struct {
	api         *client.API
	currency    string
	redirectURL string
}

// NewStripeGateway creates a Stripe-backed payment gateway.
func NewStripeGateway(apiKey, currency, redirectURL string) *StripeGateway {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeGateway{
		api:         api,
		currency:    currency,
		redirectURL: redirectURL,
	}
}

func (g *StripeGateway) CreatePaymentResources(ctx context.Context, params CreateParams) (*Resources, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	timer := prometheus.NewTimer(metrics.GatewayCallDuration.WithLabelValues("create"))
	defer timer.ObserveDuration()

	productParams := &stripe.ProductParams{
		Params: stripe.Params{Context: ctx},
		Name:   stripe.String(params.ItemName),
	}
	productParams.AddMetadata("item_id", params.ItemID)
	productParams.AddMetadata("buyer_id", params.BuyerID)
	productParams.AddMetadata("source", "negolah")

	product, err := g.api.Products.New(productParams)
	if err != nil {
		return nil, fmt.Errorf("%w: create product: %v", ErrUnavailable, err)
	}

	priceParams := &stripe.PriceParams{
		Params:     stripe.Params{Context: ctx},
		Product:    stripe.String(product.ID),
		UnitAmount: stripe.Int64(toMinorUnits(params.Amount)),
		Currency:   stripe.String(g.currency),
	}
	price, err := g.api.Prices.New(priceParams)
	if err != nil {
		// The product is orphaned at the provider; archive it so it never
		// shows up as purchasable.
		g.archiveProduct(product.ID)
		return nil, fmt.Errorf("%w: create price: %v", ErrUnavailable, err)
	}

	linkParams := &stripe.PaymentLinkParams{
		Params: stripe.Params{Context: ctx},
		LineItems: []*stripe.PaymentLinkLineItemParams{
			{Price: stripe.String(price.ID), Quantity: stripe.Int64(1)},
		},
		AfterCompletion: &stripe.PaymentLinkAfterCompletionParams{
			Type: stripe.String("redirect"),
			Redirect: &stripe.PaymentLinkAfterCompletionRedirectParams{
				URL: stripe.String(g.redirectURL),
			},
		},
	}
	linkParams.AddMetadata("item_id", params.ItemID)
	linkParams.AddMetadata("buyer_id", params.BuyerID)

	link, err := g.api.PaymentLinks.New(linkParams)
	if err != nil {
		g.archiveProduct(product.ID)
		return nil, fmt.Errorf("%w: create payment link: %v", ErrUnavailable, err)
	}

	return &Resources{
		ProductRef: product.ID,
		PriceRef:   price.ID,
		LinkRef:    link.ID,
		URL:        link.URL,
	}, nil
}

func (g *StripeGateway) Deactivate(ctx context.Context, productRef, linkRef string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	timer := prometheus.NewTimer(metrics.GatewayCallDuration.WithLabelValues("deactivate"))
	defer timer.ObserveDuration()

	if linkRef != "" {
		_, err := g.api.PaymentLinks.Update(linkRef, &stripe.PaymentLinkParams{
			Params: stripe.Params{Context: ctx},
			Active: stripe.Bool(false),
		})
		if err != nil {
			return fmt.Errorf("%w: deactivate payment link %s: %v", ErrUnavailable, linkRef, err)
		}
	}

	if productRef != "" {
		_, err := g.api.Products.Update(productRef, &stripe.ProductParams{
			Params: stripe.Params{Context: ctx},
			Active: stripe.Bool(false),
		})
		if err != nil {
			return fmt.Errorf("%w: archive product %s: %v", ErrUnavailable, productRef, err)
		}
	}

	return nil
}

// archiveProduct is best-effort cleanup during a failed create; errors are
// swallowed because the original failure is what the caller needs to see.
func (g *StripeGateway) archiveProduct(productID string) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	_, _ = g.api.Products.Update(productID, &stripe.ProductParams{
		Params: stripe.Params{Context: ctx},
		Active: stripe.Bool(false),
	})
}

// toMinorUnits converts a major-unit amount (e.g. RM90.50) to the provider's
// integer minor units (9050 sen), rounding to the nearest unit.
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// Compile-time assertion that StripeGateway implements PaymentGateway.
var _ PaymentGateway = (*StripeGateway)(nil)
