package negotiation

import (
	"context"
	"fmt"
	"math"

	"github.com/terryong/negolah/internal/catalog"
	"github.com/terryong/negolah/internal/logging"
	"github.com/terryong/negolah/internal/metrics"
)

// Service evaluates offers and authorizes agreed prices against the catalog
// of record. It holds no mutable state; every call re-reads the catalog.
type Service struct {
	catalog    CatalogReader
	floorRatio float64
}

// NewService creates a negotiation service. floorRatio is the fraction of
// the listed price used as the floor when an item has no explicit floor.
func NewService(cat CatalogReader, floorRatio float64) *Service {
	return &Service{catalog: cat, floorRatio: floorRatio}
}

// Evaluate applies the offer policy to one offer. The computation is pure
// given the catalog row; identical inputs always produce identical results.
func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) (*Evaluation, error) {
	item, err := s.catalog.Get(ctx, req.ItemID)
	if err != nil {
		if err == catalog.ErrItemNotFound {
			metrics.OffersEvaluatedTotal.WithLabelValues(string(DecisionItemNotFound)).Inc()
			return &Evaluation{
				Decision:     DecisionItemNotFound,
				ItemID:       req.ItemID,
				OfferedPrice: req.OfferedPrice,
				Message:      "I couldn't find that item. Could you tell me which listing you mean?",
			}, nil
		}
		return nil, fmt.Errorf("read item: %w", err)
	}

	ev := evaluate(item, req.OfferedPrice, req.ExtraDiscountPercent, s.floorRatio)
	metrics.OffersEvaluatedTotal.WithLabelValues(string(ev.Decision)).Inc()
	logging.L(ctx).Debug("offer evaluated",
		"item_id", item.ID,
		"offered", req.OfferedPrice,
		"decision", string(ev.Decision))
	return ev, nil
}

// evaluate is the policy itself, separated out so it can be tested without
// a store. Decision order matters: the branches are checked top to bottom
// and the first match wins.
func evaluate(item *catalog.Item, offered, extraDiscountPct, floorRatio float64) *Evaluation {
	listed := item.ListedPrice
	floor := item.EffectiveFloor(floorRatio)

	// The discount lowers the bar for acceptance but can never cut under
	// the floor.
	threshold := listed * (1 - extraDiscountPct/100)
	if threshold < floor {
		threshold = floor
	}

	ev := &Evaluation{
		ItemID:       item.ID,
		OfferedPrice: offered,
	}

	switch {
	case offered >= listed:
		// No haggling needed; the sale closes at the listed price even if
		// the buyer offered more.
		ev.Decision = DecisionAccept
		ev.AcceptedPrice = listed
		ev.Message = fmt.Sprintf("Deal at RM%s. I'll get your checkout link ready.", trimPrice(listed))
	case offered >= threshold && offered <= floor:
		// The grant brought the threshold down to meet an at-floor offer.
		// This is the last concession; the price is final.
		ev.Decision = DecisionAcceptAtFloor
		ev.AcceptedPrice = offered
		ev.Message = fmt.Sprintf("Alright, RM%s it is. That's the final price.", trimPrice(offered))
	case offered >= threshold:
		ev.Decision = DecisionCounter
		ev.CounterPrice = counterPrice(offered, listed)
		ev.Message = fmt.Sprintf("Close, but how about RM%s?", trimPrice(ev.CounterPrice))
	case offered >= floor:
		ev.Decision = DecisionCounter
		ev.CounterPrice = counterPrice(offered, listed)
		ev.Message = fmt.Sprintf("I can't do RM%s, but RM%s works for me.", trimPrice(offered), trimPrice(ev.CounterPrice))
	default:
		// The only branch that reveals the floor: the buyer has hit the
		// hard limit and should know what the real minimum is.
		ev.Decision = DecisionRejectAtFloor
		ev.FloorPrice = floor
		ev.Message = fmt.Sprintf("Sorry, the lowest I can go is RM%s.", trimPrice(floor))
	}
	return ev
}

// counterPrice splits the difference between offer and listed price,
// guaranteed strictly greater than the offer so repeated rounds converge.
func counterPrice(offered, listed float64) float64 {
	mid := (offered + listed) / 2
	if min := offered + 1; mid < min {
		mid = min
	}
	return mid
}

// Authorize is the price guard. It re-reads the item and rejects any agreed
// price that is non-positive, below the floor, or implausibly high. Error
// messages never contain the floor value.
func (s *Service) Authorize(ctx context.Context, itemID string, agreedPrice float64) error {
	// Bad inputs are rejected before any store is consulted.
	if agreedPrice <= 0 || math.IsNaN(agreedPrice) || math.IsInf(agreedPrice, 0) {
		metrics.PriceGuardRejectionsTotal.WithLabelValues("non_positive").Inc()
		return ErrNonPositivePrice
	}

	item, err := s.catalog.Get(ctx, itemID)
	if err != nil {
		if err == catalog.ErrItemNotFound {
			metrics.PriceGuardRejectionsTotal.WithLabelValues("item_not_found").Inc()
		}
		return err
	}

	if agreedPrice < item.EffectiveFloor(s.floorRatio) {
		metrics.PriceGuardRejectionsTotal.WithLabelValues("below_floor").Inc()
		logging.L(ctx).Warn("price guard rejected below-floor price",
			"item_id", itemID,
			"agreed", agreedPrice)
		return ErrBelowFloor
	}
	if agreedPrice > item.ListedPrice*implausibleMultiplier {
		metrics.PriceGuardRejectionsTotal.WithLabelValues("implausible").Inc()
		logging.L(ctx).Warn("price guard rejected implausible price",
			"item_id", itemID,
			"agreed", agreedPrice,
			"listed", item.ListedPrice)
		return ErrImplausiblePrice
	}
	return nil
}

// trimPrice renders a price without trailing zeros, so messages read
// "RM70" rather than "RM70.00" but still "RM92.50" when cents matter.
func trimPrice(p float64) string {
	if p == math.Trunc(p) {
		return fmt.Sprintf("%.0f", p)
	}
	return fmt.Sprintf("%.2f", p)
}
