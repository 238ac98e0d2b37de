package resolve

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/terryong/negolah/internal/validation"
)

// Handler provides the item resolution endpoint.
type Handler struct {
	resolver *Resolver
}

// NewHandler creates a new resolve handler.
func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

// RegisterRoutes sets up resolution routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/items/resolve", h.ResolveItem)
}

// ResolveItemRequest is the body for POST /v1/items/resolve.
type ResolveItemRequest struct {
	Reference string `json:"reference" binding:"required"`
}

// ResolveItem handles POST /v1/items/resolve
func (h *Handler) ResolveItem(c *gin.Context) {
	var req ResolveItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	req.Reference = validation.SanitizeString(req.Reference, 200)

	result, err := h.resolver.Resolve(c.Request.Context(), req.Reference)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "resolve_failed",
			"message": "Could not resolve the item reference",
		})
		return
	}
	c.JSON(http.StatusOK, result)
}
