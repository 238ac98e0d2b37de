package orders

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/terryong/negolah/internal/validation"
)

// Handler provides HTTP endpoints for orders.
type Handler struct {
	store Store
}

// NewHandler creates a new orders handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up order routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/orders/:id", h.GetOrder)
	r.GET("/buyers/:buyerId/orders", h.ListBuyerOrders)
	r.PUT("/orders/:id/shipping", h.UpdateShipping)
}

// GetOrder handles GET /v1/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	id := c.Param("id")
	if !validation.IsValidID(id) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid order id",
		})
		return
	}

	order, err := h.store.Get(c.Request.Context(), id)
	if errors.Is(err, ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "order_not_found",
			"message": "Order not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "get_failed",
			"message": "Could not load the order",
		})
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListBuyerOrders handles GET /v1/buyers/:buyerId/orders
func (h *Handler) ListBuyerOrders(c *gin.Context) {
	buyerID := c.Param("buyerId")
	if !validation.IsValidID(buyerID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid buyer id",
		})
		return
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	result, err := h.store.ListByBuyer(c.Request.Context(), buyerID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Could not list orders",
		})
		return
	}
	if result == nil {
		result = []*Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": result, "count": len(result)})
}

// UpdateShipping handles PUT /v1/orders/:id/shipping
func (h *Handler) UpdateShipping(c *gin.Context) {
	id := c.Param("id")
	if !validation.IsValidID(id) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid order id",
		})
		return
	}

	var info ShippingInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "recipientName, phone, and address are all required",
		})
		return
	}
	info.RecipientName = validation.SanitizeString(info.RecipientName, 200)
	info.Phone = validation.SanitizeString(info.Phone, 50)
	info.Address = validation.SanitizeString(info.Address, 1000)
	if err := validation.Validate(
		validation.MaxLength("recipientName", info.RecipientName, 200),
		validation.MaxLength("phone", info.Phone, 50),
		validation.MaxLength("address", info.Address, 1000),
	); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	err := h.store.UpdateShipping(c.Request.Context(), id, info, time.Now())
	if errors.Is(err, ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "order_not_found",
			"message": "Order not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "update_failed",
			"message": "Could not save shipping details",
		})
		return
	}

	order, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"updated": true})
		return
	}
	c.JSON(http.StatusOK, order)
}
