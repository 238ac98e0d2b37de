package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Service fans a settlement event out to every configured channel. All
// methods are best-effort: a delivery failure is logged and swallowed, so
// the triggering operation never rolls back because a notification was
// lost.
type Service struct {
	hub    *Hub
	poster *Poster
	logger *slog.Logger
}

// NewService creates a notification service. hub and poster may be nil for
// channels that are not running.
func NewService(hub *Hub, poster *Poster, logger *slog.Logger) *Service {
	return &Service{hub: hub, poster: poster, logger: logger}
}

// PaymentConfirmed tells the buyer their payment went through and what
// happens next.
func (s *Service) PaymentConfirmed(ctx context.Context, buyerID, itemName, orderID string, amount float64) {
	s.broadcast(&Event{
		Type:      EventPaymentConfirmed,
		BuyerID:   buyerID,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"orderId":  orderID,
			"itemName": itemName,
			"amount":   amount,
		},
	})
	s.post(ctx, buyerID, fmt.Sprintf(
		"Payment received for %s (RM%.2f). Order %s is confirmed, please share your shipping details.",
		itemName, amount, orderID))
}

// CheckoutCreated announces a fresh checkout link.
func (s *Service) CheckoutCreated(ctx context.Context, buyerID, itemName, url string) {
	s.broadcast(&Event{
		Type:      EventCheckoutCreated,
		BuyerID:   buyerID,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"itemName": itemName,
			"url":      url,
		},
	})
}

// LeaseExpired tells the buyer their checkout window lapsed.
func (s *Service) LeaseExpired(ctx context.Context, buyerID, itemName string) {
	s.broadcast(&Event{
		Type:      EventLeaseExpired,
		BuyerID:   buyerID,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"itemName": itemName,
		},
	})
}

func (s *Service) broadcast(e *Event) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(e)
}

func (s *Service) post(ctx context.Context, buyerID, message string) {
	if s.poster == nil || !s.poster.Enabled() {
		return
	}
	if err := s.poster.Post(ctx, buyerID, message); err != nil {
		s.logger.Warn("failed to post conversation message",
			"buyer_id", buyerID,
			"error", err)
	}
}
