// internal/interfaces/http/handlers/webhook.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/payment"
)

// WebhookHandler receives payment gateway callbacks
type WebhookHandler struct {
	paymentService *payment.Service
	log            *logrus.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(paymentService *payment.Service, log *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{paymentService: paymentService, log: log}
}

// signatureHeaders maps a provider to the header its gateway signs with
var signatureHeaders = map[string]string{
	"stripe": "Stripe-Signature",
	"epayco": "X-Signature",
}

// HandlePaymentWebhook handles POST /webhooks/payments/:provider.
// Signature verification happens inside the gateway; a rejected payload
// is answered with 400 so the gateway stops retrying it.
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	provider := c.Param("provider")

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read payload"})
		return
	}

	header, ok := signatureHeaders[provider]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown provider"})
		return
	}
	signature := c.GetHeader(header)

	if err := h.paymentService.HandleWebhook(c.Request.Context(), provider, payload, signature); err != nil {
		if errors.Is(err, payment.ErrWebhookRejected) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook rejected"})
			return
		}
		// Internal failure. Answer 500 so the gateway retries later.
		h.log.WithError(err).WithField("provider", provider).Error("Webhook processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
