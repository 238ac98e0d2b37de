package settlement

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/terryong/negolah/internal/catalog"
	"github.com/terryong/negolah/internal/logging"
	"github.com/terryong/negolah/internal/metrics"
	"github.com/terryong/negolah/internal/validation"
)

// maxWebhookBody caps the webhook payload size, per Stripe's guidance.
const maxWebhookBody = int64(65536)

// Handler exposes the two finalization triggers over HTTP.
type Handler struct {
	coordinator   *Coordinator
	webhookSecret string
}

// NewHandler creates a settlement handler.
func NewHandler(coordinator *Coordinator, webhookSecret string) *Handler {
	return &Handler{coordinator: coordinator, webhookSecret: webhookSecret}
}

// RegisterWebhookRoutes sets up the provider-facing webhook route. It is
// registered outside the versioned API group; the provider's URL never
// changes.
func (h *Handler) RegisterWebhookRoutes(r *gin.Engine) {
	r.POST("/webhooks/stripe", h.StripeWebhook)
}

// RegisterRoutes sets up the operator-facing confirmation route.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/orders/confirm", h.ConfirmPayment)
}

// StripeWebhook handles POST /webhooks/stripe
//
// The signature is verified before the payload is even parsed; an
// unverified body never reaches any store.
func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		metrics.WebhookRejectedTotal.WithLabelValues("read_error").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret,
		webhook.ConstructEventOptions{
			// Events keep flowing across Stripe API version bumps; the
			// fields we read are stable.
			IgnoreAPIVersionMismatch: true,
		})
	if err != nil {
		metrics.WebhookRejectedTotal.WithLabelValues("bad_signature").Inc()
		logging.L(c.Request.Context()).Warn("webhook signature verification failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature"})
		return
	}

	if event.Type != "checkout.session.completed" {
		// Not ours to handle; acknowledge so the provider stops retrying.
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		metrics.WebhookRejectedTotal.WithLabelValues("bad_payload").Inc()
		logging.L(c.Request.Context()).Error("cannot parse checkout session", "error", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	itemID := session.Metadata["item_id"]
	buyerID := session.Metadata["buyer_id"]
	if itemID == "" || buyerID == "" {
		// A payment happened but we cannot tie it to a sale. Retrying
		// will not grow the metadata, so acknowledge and leave a loud log
		// line for the operator.
		metrics.WebhookRejectedTotal.WithLabelValues("missing_metadata").Inc()
		logging.L(c.Request.Context()).Error("completed checkout without sale metadata",
			"session_id", session.ID,
			"event_id", event.ID)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	paymentRef := session.ID
	if session.PaymentIntent != nil {
		paymentRef = session.PaymentIntent.ID
	}

	result, err := h.coordinator.Finalize(c.Request.Context(), TriggerWebhook,
		itemID, buyerID, float64(session.AmountTotal)/100, paymentRef)
	if err != nil {
		// A 5xx makes the provider redeliver; finalization is idempotent
		// so the retry is safe.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "finalization_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": result.Outcome})
}

// ConfirmPaymentRequest is the body for POST /v1/orders/confirm.
type ConfirmPaymentRequest struct {
	ItemID     string  `json:"itemId" binding:"required"`
	BuyerID    string  `json:"buyerId" binding:"required"`
	AmountPaid float64 `json:"amountPaid"`
	PaymentRef string  `json:"paymentRef"`
}

// ConfirmPayment handles POST /v1/orders/confirm
//
// The manual trigger for sellers who saw the payment land before the
// webhook arrived. Funnels into the same finalization as the webhook.
func (h *Handler) ConfirmPayment(c *gin.Context) {
	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if err := validation.Validate(
		validation.ValidID("itemId", req.ItemID),
		validation.ValidID("buyerId", req.BuyerID),
	); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	result, err := h.coordinator.Finalize(c.Request.Context(), TriggerManual,
		req.ItemID, req.BuyerID, req.AmountPaid, req.PaymentRef)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.Is(err, catalog.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "item_not_found",
			"message": "Item not found",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "finalization_failed",
			"message": "Could not confirm the payment",
		})
	}
}
