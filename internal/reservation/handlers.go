package reservation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/terryong/negolah/internal/catalog"
	"github.com/terryong/negolah/internal/gateway"
	"github.com/terryong/negolah/internal/negotiation"
	"github.com/terryong/negolah/internal/validation"
)

// Handler provides HTTP endpoints for checkout leases.
type Handler struct {
	service *Service
}

// NewHandler creates a new reservation handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up checkout lease routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/checkout-links", h.CreateCheckoutLink)
	r.GET("/buyers/:buyerId/checkout-links", h.ListBuyerCheckoutLinks)
	r.DELETE("/buyers/:buyerId/checkout-links/:itemId", h.CancelCheckoutLink)
}

// RegisterAdminRoutes sets up seller-side lease routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/checkout-links", h.ListAllCheckoutLinks)
}

// CreateCheckoutLinkRequest is the body for POST /v1/checkout-links.
type CreateCheckoutLinkRequest struct {
	BuyerID     string  `json:"buyerId" binding:"required"`
	ItemID      string  `json:"itemId" binding:"required"`
	AgreedPrice float64 `json:"agreedPrice" binding:"required"`
}

// CreateCheckoutLinkResponse wraps the lease with a reuse flag so agents
// can tell the buyer "here is your existing link" instead of re-announcing.
type CreateCheckoutLinkResponse struct {
	*Reservation
	Reused bool `json:"reused"`
}

// CreateCheckoutLink handles POST /v1/checkout-links
func (h *Handler) CreateCheckoutLink(c *gin.Context) {
	var req CreateCheckoutLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if err := validation.Validate(
		validation.ValidID("buyerId", req.BuyerID),
		validation.ValidID("itemId", req.ItemID),
		validation.PositivePrice("agreedPrice", req.AgreedPrice),
	); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	if validation.IsPlaceholderID(req.ItemID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "itemId looks like a placeholder, not a real item",
		})
		return
	}

	lease, reused, err := h.service.CreateOrGet(c.Request.Context(), req.BuyerID, req.ItemID, req.AgreedPrice)
	if err != nil {
		h.writeCreateError(c, err)
		return
	}
	status := http.StatusCreated
	if reused {
		status = http.StatusOK
	}
	c.JSON(status, CreateCheckoutLinkResponse{Reservation: lease, Reused: reused})
}

func (h *Handler) writeCreateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "item_not_found",
			"message": "Item not found",
		})
	case errors.Is(err, catalog.ErrAlreadySold):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "item_sold",
			"message": "This item has already been sold",
		})
	case errors.Is(err, negotiation.ErrBelowFloor),
		errors.Is(err, negotiation.ErrNonPositivePrice),
		errors.Is(err, negotiation.ErrImplausiblePrice):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "price_rejected",
			"message": err.Error(),
		})
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, gateway.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "temporarily_unavailable",
			"message": "Could not create a checkout link right now, please try again",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "checkout_failed",
			"message": "Could not create a checkout link",
		})
	}
}

// ListBuyerCheckoutLinks handles GET /v1/buyers/:buyerId/checkout-links
func (h *Handler) ListBuyerCheckoutLinks(c *gin.Context) {
	buyerID := c.Param("buyerId")
	if !validation.IsValidID(buyerID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid buyer id",
		})
		return
	}

	leases, err := h.service.ListByBuyer(c.Request.Context(), buyerID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "temporarily_unavailable",
			"message": "Could not list checkout links right now",
		})
		return
	}
	if leases == nil {
		leases = []*Reservation{}
	}
	c.JSON(http.StatusOK, gin.H{"checkoutLinks": leases, "count": len(leases)})
}

// ListAllCheckoutLinks handles GET /v1/admin/checkout-links. Every pending
// lease across all buyers, for seller-side inspection.
func (h *Handler) ListAllCheckoutLinks(c *gin.Context) {
	limit := 200
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	leases, err := h.service.ListAll(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "temporarily_unavailable",
			"message": "Could not list checkout links right now",
		})
		return
	}
	if leases == nil {
		leases = []*Reservation{}
	}
	c.JSON(http.StatusOK, gin.H{"checkoutLinks": leases, "count": len(leases)})
}

// CancelCheckoutLink handles DELETE /v1/buyers/:buyerId/checkout-links/:itemId
func (h *Handler) CancelCheckoutLink(c *gin.Context) {
	buyerID := c.Param("buyerId")
	itemID := c.Param("itemId")
	if !validation.IsValidID(buyerID) || !validation.IsValidID(itemID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid buyer or item id",
		})
		return
	}

	err := h.service.Cancel(c.Request.Context(), buyerID, itemID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"cancelled": true})
	case errors.Is(err, ErrReservationNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "reservation_not_found",
			"message": "No active checkout link for this buyer and item",
		})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "cancel_failed",
			"message": "Could not cancel the checkout link right now",
		})
	}
}
