package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *NegolahClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *NegolahClient) *Handlers {
	return &Handlers{client: client}
}

// HandleResolveItem resolves an item reference to a listing.
func (h *Handlers) HandleResolveItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reference := req.GetString("reference", "")
	if reference == "" {
		return mcp.NewToolResultError("reference is required"), nil
	}

	raw, err := h.client.ResolveItem(ctx, reference)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve item: %v", err)), nil
	}

	text, err := formatResolution(raw, reference)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse resolution: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleEvaluateOffer runs an offer through the pricing policy.
func (h *Handlers) HandleEvaluateOffer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	itemID := req.GetString("item_id", "")
	if itemID == "" {
		return mcp.NewToolResultError("item_id is required"), nil
	}
	offered := req.GetFloat("offered_price", 0)
	if offered <= 0 {
		return mcp.NewToolResultError("offered_price must be a positive number"), nil
	}
	discount := req.GetFloat("extra_discount_percent", 0)

	raw, err := h.client.EvaluateOffer(ctx, itemID, offered, discount)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to evaluate offer: %v", err)), nil
	}

	text, err := formatEvaluation(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse evaluation: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleCreateCheckoutLink creates or reuses a payment link.
func (h *Handlers) HandleCreateCheckoutLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	buyerID := req.GetString("buyer_id", "")
	if buyerID == "" {
		return mcp.NewToolResultError("buyer_id is required"), nil
	}
	itemID := req.GetString("item_id", "")
	if itemID == "" {
		return mcp.NewToolResultError("item_id is required"), nil
	}
	price := req.GetFloat("agreed_price", 0)
	if price <= 0 {
		return mcp.NewToolResultError("agreed_price must be a positive number"), nil
	}

	raw, err := h.client.CreateCheckoutLink(ctx, buyerID, itemID, price)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create checkout link: %v", err)), nil
	}

	text, err := formatCheckoutLink(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse checkout link: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListCheckoutLinks lists a buyer's active payment links.
func (h *Handlers) HandleListCheckoutLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	buyerID := req.GetString("buyer_id", "")
	if buyerID == "" {
		return mcp.NewToolResultError("buyer_id is required"), nil
	}

	raw, err := h.client.ListCheckoutLinks(ctx, buyerID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list checkout links: %v", err)), nil
	}

	text, err := formatCheckoutLinkList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse checkout links: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleCancelCheckoutLink cancels a buyer's payment link for an item.
func (h *Handlers) HandleCancelCheckoutLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	buyerID := req.GetString("buyer_id", "")
	if buyerID == "" {
		return mcp.NewToolResultError("buyer_id is required"), nil
	}
	itemID := req.GetString("item_id", "")
	if itemID == "" {
		return mcp.NewToolResultError("item_id is required"), nil
	}

	if _, err := h.client.CancelCheckoutLink(ctx, buyerID, itemID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to cancel checkout link: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Checkout link for item %s cancelled. The payment link is deactivated and can no longer be paid.",
		itemID)), nil
}

// HandleCheckBuyerOrders lists a buyer's orders.
func (h *Handlers) HandleCheckBuyerOrders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	buyerID := req.GetString("buyer_id", "")
	if buyerID == "" {
		return mcp.NewToolResultError("buyer_id is required"), nil
	}

	raw, err := h.client.ListOrders(ctx, buyerID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check orders: %v", err)), nil
	}

	text, err := formatOrderList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse orders: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleSaveShippingInfo records shipping details for a paid order.
func (h *Handlers) HandleSaveShippingInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orderID := req.GetString("order_id", "")
	if orderID == "" {
		return mcp.NewToolResultError("order_id is required"), nil
	}
	recipient := req.GetString("recipient_name", "")
	if recipient == "" {
		return mcp.NewToolResultError("recipient_name is required"), nil
	}
	phone := req.GetString("phone", "")
	if phone == "" {
		return mcp.NewToolResultError("phone is required"), nil
	}
	address := req.GetString("address", "")
	if address == "" {
		return mcp.NewToolResultError("address is required"), nil
	}

	raw, err := h.client.SaveShippingInfo(ctx, orderID, recipient, phone, address)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to save shipping info: %v", err)), nil
	}

	var order orderInfo
	if err := json.Unmarshal(raw, &order); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse order: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Shipping details saved for order %s.\n"+
			"Recipient: %s\n"+
			"Status: %s\n\n"+
			"Let the buyer know their order is confirmed and will be shipped soon.",
		order.ID, order.RecipientName, order.Status)), nil
}

// --- Formatting helpers ---

type itemInfo struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ListedPrice float64 `json:"listedPrice"`
	Status      string  `json:"status"`
}

type linkInfo struct {
	BuyerID     string    `json:"buyerId"`
	ItemID      string    `json:"itemId"`
	ItemName    string    `json:"itemName"`
	AgreedPrice float64   `json:"agreedPrice"`
	PaymentURL  string    `json:"paymentUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type orderInfo struct {
	ID            string    `json:"id"`
	ItemID        string    `json:"itemId"`
	ItemName      string    `json:"itemName"`
	Amount        float64   `json:"amount"`
	Status        string    `json:"status"`
	RecipientName string    `json:"recipientName"`
	CreatedAt     time.Time `json:"createdAt"`
}

func formatResolution(raw json.RawMessage, reference string) (string, error) {
	var resp struct {
		Kind       string     `json:"kind"`
		Item       *itemInfo  `json:"item"`
		Candidates []itemInfo `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	switch resp.Kind {
	case "resolved":
		if resp.Item == nil {
			return "", fmt.Errorf("resolved result without an item")
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "Resolved to: %s (id: %s)\n", resp.Item.Name, resp.Item.ID)
		fmt.Fprintf(&sb, "Listed price: RM%.2f | Status: %s\n", resp.Item.ListedPrice, resp.Item.Status)
		if resp.Item.Description != "" {
			fmt.Fprintf(&sb, "%s\n", resp.Item.Description)
		}
		return sb.String(), nil
	case "ambiguous":
		var sb strings.Builder
		fmt.Fprintf(&sb, "'%s' matches %d listings. Ask the buyer which one they mean:\n\n", reference, len(resp.Candidates))
		for i, c := range resp.Candidates {
			fmt.Fprintf(&sb, "%d. %s (id: %s) at RM%.2f\n", i+1, c.Name, c.ID, c.ListedPrice)
		}
		return sb.String(), nil
	case "not_found":
		return fmt.Sprintf("No listing matches '%s'. Ask the buyer to describe the item differently.", reference), nil
	default:
		return "", fmt.Errorf("unexpected resolution kind %q", resp.Kind)
	}
}

func formatEvaluation(raw json.RawMessage) (string, error) {
	var ev struct {
		Decision      string  `json:"decision"`
		ItemID        string  `json:"itemId"`
		OfferedPrice  float64 `json:"offeredPrice"`
		AcceptedPrice float64 `json:"acceptedPrice"`
		CounterPrice  float64 `json:"counterPrice"`
		FloorPrice    float64 `json:"floorPrice"`
		Message       string  `json:"message"`
	}
	if err := json.Unmarshal(raw, &ev); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Decision: %s\n", ev.Decision)
	switch ev.Decision {
	case "accept", "accept_at_floor":
		fmt.Fprintf(&sb, "Accepted price: RM%.2f\n", ev.AcceptedPrice)
	case "counter":
		fmt.Fprintf(&sb, "Counter price: RM%.2f\n", ev.CounterPrice)
	case "reject_at_floor":
		fmt.Fprintf(&sb, "Lowest acceptable price: RM%.2f\n", ev.FloorPrice)
	}
	fmt.Fprintf(&sb, "\nSay to the buyer: %s", ev.Message)
	return sb.String(), nil
}

func formatCheckoutLink(raw json.RawMessage) (string, error) {
	var resp struct {
		linkInfo
		Reused bool `json:"reused"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	if resp.Reused {
		fmt.Fprintf(&sb, "This buyer already has a link for %s at RM%.2f. Reusing it.\n\n", resp.ItemName, resp.AgreedPrice)
	} else {
		fmt.Fprintf(&sb, "Checkout link created for %s at RM%.2f.\n\n", resp.ItemName, resp.AgreedPrice)
	}
	fmt.Fprintf(&sb, "Payment link: %s\n", resp.PaymentURL)
	fmt.Fprintf(&sb, "Valid until: %s\n", resp.ExpiresAt.Format(time.RFC1123))
	sb.WriteString("\nShare the payment link with the buyer.")
	return sb.String(), nil
}

func formatCheckoutLinkList(raw json.RawMessage) (string, error) {
	var resp struct {
		CheckoutLinks []linkInfo `json:"checkoutLinks"`
		Count         int        `json:"count"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.CheckoutLinks) == 0 {
		return "This buyer has no active checkout links.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Active checkout link(s): %d\n\n", len(resp.CheckoutLinks))
	for i, l := range resp.CheckoutLinks {
		fmt.Fprintf(&sb, "%d. %s at RM%.2f\n", i+1, l.ItemName, l.AgreedPrice)
		fmt.Fprintf(&sb, "   Link: %s\n", l.PaymentURL)
		fmt.Fprintf(&sb, "   Expires: %s\n", l.ExpiresAt.Format(time.RFC1123))
	}
	return sb.String(), nil
}

func formatOrderList(raw json.RawMessage) (string, error) {
	var resp struct {
		Orders []orderInfo `json:"orders"`
		Count  int         `json:"count"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Orders) == 0 {
		return "This buyer has no orders yet.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d order(s):\n\n", len(resp.Orders))
	for i, o := range resp.Orders {
		fmt.Fprintf(&sb, "%d. %s (order %s)\n", i+1, o.ItemName, o.ID)
		fmt.Fprintf(&sb, "   Paid: RM%.2f | Status: %s\n", o.Amount, o.Status)
		if o.Status == "pending_shipping_info" {
			sb.WriteString("   Shipping details still needed. Use save_shipping_info once the buyer provides them.\n")
		}
	}
	return sb.String(), nil
}
