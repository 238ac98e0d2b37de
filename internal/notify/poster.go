package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/terryong/negolah/internal/retry"
)

// Poster pushes a message into the conversation service so the agent can
// relay it to the buyer in chat. Disabled when no base URL is configured.
type Poster struct {
	baseURL string
	client  *http.Client
}

// NewPoster creates a conversation poster. baseURL may be empty, in which
// case Post is a no-op.
func NewPoster(baseURL string) *Poster {
	return &Poster{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a conversation service is configured.
func (p *Poster) Enabled() bool {
	return p.baseURL != ""
}

// Post delivers one message to the buyer's conversation. Transient
// failures are retried briefly; a 4xx response is not retried since the
// payload will not get better.
func (p *Poster) Post(ctx context.Context, buyerID, message string) error {
	if !p.Enabled() {
		return nil
	}

	body, err := json.Marshal(map[string]string{
		"buyerId": buyerID,
		"message": message,
	})
	if err != nil {
		return fmt.Errorf("marshal conversation message: %w", err)
	}

	return retry.Do(ctx, 3, 500*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			p.baseURL+"/messages", bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return retry.Permanent(fmt.Errorf("conversation service rejected message: %s", resp.Status))
		default:
			return fmt.Errorf("conversation service error: %s", resp.Status)
		}
	})
}
