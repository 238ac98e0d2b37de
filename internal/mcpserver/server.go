package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all NegoLah tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("negolah", "1.0.0")
	client := NewNegolahClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolResolveItem, h.HandleResolveItem)
	s.AddTool(ToolEvaluateOffer, h.HandleEvaluateOffer)
	s.AddTool(ToolCreateCheckoutLink, h.HandleCreateCheckoutLink)
	s.AddTool(ToolListCheckoutLinks, h.HandleListCheckoutLinks)
	s.AddTool(ToolCancelCheckoutLink, h.HandleCancelCheckoutLink)
	s.AddTool(ToolCheckBuyerOrders, h.HandleCheckBuyerOrders)
	s.AddTool(ToolSaveShippingInfo, h.HandleSaveShippingInfo)

	return s
}
