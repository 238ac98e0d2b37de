package negotiation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/terryong/negolah/internal/validation"
)

// Handler provides HTTP endpoints for offer evaluation.
type Handler struct {
	service *Service
}

// NewHandler creates a new negotiation handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up negotiation routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/offers/evaluate", h.EvaluateOffer)
}

// EvaluateOffer handles POST /v1/offers/evaluate
func (h *Handler) EvaluateOffer(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if err := validation.Validate(
		validation.ValidID("itemId", req.ItemID),
		validation.PositivePrice("offeredPrice", req.OfferedPrice),
	); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	if req.ExtraDiscountPercent < 0 || req.ExtraDiscountPercent > 100 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "extraDiscountPercent must be between 0 and 100",
		})
		return
	}

	ev, err := h.service.Evaluate(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "evaluation_failed",
			"message": "Could not evaluate offer",
		})
		return
	}

	if ev.Decision == DecisionItemNotFound {
		c.JSON(http.StatusNotFound, ev)
		return
	}
	c.JSON(http.StatusOK, ev)
}
