package notify

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testClient(sub Subscription) *Client {
	return &Client{sub: sub}
}

func TestShouldSendFilters(t *testing.T) {
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	event := &Event{
		Type:      EventPaymentConfirmed,
		BuyerID:   "buyer-1",
		Timestamp: time.Now(),
	}

	tests := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{"all events", Subscription{AllEvents: true}, true},
		{"matching buyer", Subscription{BuyerIDs: []string{"buyer-1"}}, true},
		{"other buyer", Subscription{BuyerIDs: []string{"buyer-2"}}, false},
		{"matching type", Subscription{EventTypes: []EventType{EventPaymentConfirmed}}, true},
		{"other type", Subscription{EventTypes: []EventType{EventLeaseExpired}}, false},
		{"type and buyer both match", Subscription{
			EventTypes: []EventType{EventPaymentConfirmed},
			BuyerIDs:   []string{"buyer-1"},
		}, true},
		{"type matches but buyer does not", Subscription{
			EventTypes: []EventType{EventPaymentConfirmed},
			BuyerIDs:   []string{"buyer-2"},
		}, false},
		{"no filters receives everything", Subscription{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.shouldSend(testClient(tt.sub), event); got != tt.want {
				t.Errorf("shouldSend = %v, want %v", got, tt.want)
			}
		})
	}
}
