package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Config holds the configuration for connecting to the NegoLah API.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
}

// NegolahClient is a pure HTTP client for the NegoLah API.
type NegolahClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewNegolahClient creates a new client for the NegoLah API.
func NewNegolahClient(cfg Config) *NegolahClient {
	return &NegolahClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the API and returns the response body.
func (c *NegolahClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// ResolveItem resolves an item reference (id or fuzzy name) to a listing.
func (c *NegolahClient) ResolveItem(ctx context.Context, reference string) (json.RawMessage, error) {
	body := map[string]string{
		"reference": reference,
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/items/resolve", nil, body)
}

// EvaluateOffer runs an offer through the pricing policy.
func (c *NegolahClient) EvaluateOffer(ctx context.Context, itemID string, offeredPrice, extraDiscountPercent float64) (json.RawMessage, error) {
	body := map[string]any{
		"itemId":       itemID,
		"offeredPrice": offeredPrice,
	}
	if extraDiscountPercent > 0 {
		body["extraDiscountPercent"] = extraDiscountPercent
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/offers/evaluate", nil, body)
}

// CreateCheckoutLink creates (or reuses) a payment link for an agreed sale.
func (c *NegolahClient) CreateCheckoutLink(ctx context.Context, buyerID, itemID string, agreedPrice float64) (json.RawMessage, error) {
	body := map[string]any{
		"buyerId":     buyerID,
		"itemId":      itemID,
		"agreedPrice": agreedPrice,
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/checkout-links", nil, body)
}

// ListCheckoutLinks lists a buyer's active payment links.
func (c *NegolahClient) ListCheckoutLinks(ctx context.Context, buyerID string) (json.RawMessage, error) {
	path := "/v1/buyers/" + url.PathEscape(buyerID) + "/checkout-links"
	return c.doRequest(ctx, http.MethodGet, path, nil, nil)
}

// CancelCheckoutLink cancels a buyer's payment link for an item.
func (c *NegolahClient) CancelCheckoutLink(ctx context.Context, buyerID, itemID string) (json.RawMessage, error) {
	path := "/v1/buyers/" + url.PathEscape(buyerID) + "/checkout-links/" + url.PathEscape(itemID)
	return c.doRequest(ctx, http.MethodDelete, path, nil, nil)
}

// ListOrders lists a buyer's orders.
func (c *NegolahClient) ListOrders(ctx context.Context, buyerID string) (json.RawMessage, error) {
	path := "/v1/buyers/" + url.PathEscape(buyerID) + "/orders"
	return c.doRequest(ctx, http.MethodGet, path, nil, nil)
}

// SaveShippingInfo records shipping details for a paid order.
func (c *NegolahClient) SaveShippingInfo(ctx context.Context, orderID, recipientName, phone, address string) (json.RawMessage, error) {
	body := map[string]string{
		"recipientName": recipientName,
		"phone":         phone,
		"address":       address,
	}
	path := "/v1/orders/" + url.PathEscape(orderID) + "/shipping"
	return c.doRequest(ctx, http.MethodPut, path, nil, body)
}
