package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the NegoLah MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolResolveItem = mcp.NewTool("resolve_item",
	mcp.WithDescription(
		"Resolve a buyer's item reference (an exact id or a fuzzy name from the conversation) "+
			"to a catalog listing. Returns the item, a short list of candidates to pick from, "+
			"or not-found. Always resolve before evaluating offers or creating checkout links."),
	mcp.WithString("reference",
		mcp.Required(),
		mcp.Description("The item id or the name the buyer used (e.g. 'the vintage watch')")),
)

var ToolEvaluateOffer = mcp.NewTool("evaluate_offer",
	mcp.WithDescription(
		"Evaluate a buyer's price offer against the seller's pricing policy. "+
			"Returns a deterministic decision: accept, accept_at_floor, counter (with the counter "+
			"price), or reject_at_floor. Relay the returned message to the buyer; never invent "+
			"your own price decisions."),
	mcp.WithString("item_id",
		mcp.Required(),
		mcp.Description("The resolved item id (use resolve_item first for fuzzy names)")),
	mcp.WithNumber("offered_price",
		mcp.Required(),
		mcp.Description("The buyer's current offer in RM")),
	mcp.WithNumber("extra_discount_percent",
		mcp.Description("Discount you have granted this buyer (0, 5, or 10). Lowers the accept threshold, never below the floor.")),
)

var ToolCreateCheckoutLink = mcp.NewTool("create_checkout_link",
	mcp.WithDescription(
		"Create a payment link for an agreed sale, or return the buyer's existing link for the "+
			"same item. The price is re-checked server-side; a price the policy would not accept "+
			"is rejected here no matter what was said in the conversation. Links stay valid for 3 days."),
	mcp.WithString("buyer_id",
		mcp.Required(),
		mcp.Description("The buyer's id")),
	mcp.WithString("item_id",
		mcp.Required(),
		mcp.Description("The resolved item id. Must be a real id, not a placeholder.")),
	mcp.WithNumber("agreed_price",
		mcp.Required(),
		mcp.Description("The price the buyer agreed to pay in RM")),
)

var ToolListCheckoutLinks = mcp.NewTool("list_checkout_links",
	mcp.WithDescription(
		"List a buyer's active payment links with their expiry times. "+
			"Use this when a buyer asks where their link is or what they have pending."),
	mcp.WithString("buyer_id",
		mcp.Required(),
		mcp.Description("The buyer's id")),
)

var ToolCancelCheckoutLink = mcp.NewTool("cancel_checkout_link",
	mcp.WithDescription(
		"Cancel a buyer's payment link for an item, deactivating the link so it can no longer "+
			"be paid. Use when the buyer backs out or wants to renegotiate."),
	mcp.WithString("buyer_id",
		mcp.Required(),
		mcp.Description("The buyer's id")),
	mcp.WithString("item_id",
		mcp.Required(),
		mcp.Description("The item id the link was created for")),
)

var ToolCheckBuyerOrders = mcp.NewTool("check_buyer_orders",
	mcp.WithDescription(
		"List a buyer's orders and their status (pending_shipping_info, confirmed, shipped, ...). "+
			"Use this to answer 'did my payment go through?' and 'where is my order?'."),
	mcp.WithString("buyer_id",
		mcp.Required(),
		mcp.Description("The buyer's id")),
)

var ToolSaveShippingInfo = mcp.NewTool("save_shipping_info",
	mcp.WithDescription(
		"Save the buyer's shipping details for a paid order. All three fields are required; "+
			"collect them in conversation first. Moves the order from pending_shipping_info to confirmed."),
	mcp.WithString("order_id",
		mcp.Required(),
		mcp.Description("The order id from check_buyer_orders")),
	mcp.WithString("recipient_name",
		mcp.Required(),
		mcp.Description("Who the parcel is addressed to")),
	mcp.WithString("phone",
		mcp.Required(),
		mcp.Description("Contact phone number for the courier")),
	mcp.WithString("address",
		mcp.Required(),
		mcp.Description("Full delivery address")),
)
