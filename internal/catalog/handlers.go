package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/terryong/negolah/internal/idgen"
	"github.com/terryong/negolah/internal/validation"
)

// Handler provides HTTP endpoints for catalog listings.
type Handler struct {
	store Store
}

// NewHandler creates a new catalog handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up public catalog routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/items", h.ListItems)
	r.GET("/items/:id", h.GetItem)
}

// RegisterAdminRoutes sets up seller-side catalog routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/items", h.CreateItem)
}

// ListItems handles GET /v1/items
func (h *Handler) ListItems(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	items, err := h.store.ListAvailable(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Could not list items",
		})
		return
	}
	public := make([]*Item, 0, len(items))
	for _, it := range items {
		cp := *it
		cp.FloorPrice = 0
		public = append(public, &cp)
	}
	c.JSON(http.StatusOK, gin.H{"items": public, "count": len(public)})
}

// GetItem handles GET /v1/items/:id
//
// The floor price is seller-private and stripped from the public view.
func (h *Handler) GetItem(c *gin.Context) {
	id := c.Param("id")
	if !validation.IsValidID(id) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid item id",
		})
		return
	}

	item, err := h.store.Get(c.Request.Context(), id)
	if errors.Is(err, ErrItemNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "item_not_found",
			"message": "Item not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "get_failed",
			"message": "Could not load the item",
		})
		return
	}

	public := *item
	public.FloorPrice = 0
	c.JSON(http.StatusOK, public)
}

// CreateItemRequest is the body for POST /v1/admin/items.
type CreateItemRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	ListedPrice float64 `json:"listedPrice" binding:"required"`
	FloorPrice  float64 `json:"floorPrice"`
}

// CreateItem handles POST /v1/admin/items
func (h *Handler) CreateItem(c *gin.Context) {
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if err := validation.Validate(
		validation.Required("name", req.Name),
		validation.MaxLength("name", req.Name, 200),
		validation.PositivePrice("listedPrice", req.ListedPrice),
	); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	if req.FloorPrice < 0 || req.FloorPrice > req.ListedPrice {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "floorPrice must be between 0 and listedPrice",
		})
		return
	}

	now := time.Now()
	item := &Item{
		ID:          idgen.WithPrefix("item"),
		Name:        validation.SanitizeString(req.Name, 200),
		Description: validation.SanitizeString(req.Description, 2000),
		ListedPrice: req.ListedPrice,
		FloorPrice:  req.FloorPrice,
		Status:      StatusAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.store.Create(c.Request.Context(), item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "create_failed",
			"message": "Could not create the item",
		})
		return
	}
	c.JSON(http.StatusCreated, item)
}
