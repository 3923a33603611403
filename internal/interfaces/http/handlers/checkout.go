// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/domain/checkout"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
)

// CheckoutHandler handles checkout session endpoints
type CheckoutHandler struct {
	checkoutService *checkout.Service
	products        *product.Repository
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkoutService *checkout.Service, products *product.Repository) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService, products: products}
}

func mustUserID(c *gin.Context) (uint, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	}
	return userID, ok
}

// Initiate handles POST /checkout
func (h *CheckoutHandler) Initiate(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	sess, err := h.checkoutService.Initiate(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": sessionView(sess)})
}

// Status handles GET /checkout/:sessionId
func (h *CheckoutHandler) Status(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	sess, err := h.checkoutService.Status(c.Request.Context(), userID, c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sessionView(sess)})
}

// SetDelivery handles PUT /checkout/:sessionId/delivery
func (h *CheckoutHandler) SetDelivery(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req checkout.SetDeliveryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	sess, err := h.checkoutService.SetDelivery(c.Request.Context(), userID, c.Param("sessionId"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sessionView(sess)})
}

// setPaymentMethodRequest picks the payment method
type setPaymentMethodRequest struct {
	PaymentMethodID uint `json:"payment_method_id" binding:"required"`
}

// SetPaymentMethod handles PUT /checkout/:sessionId/payment-method
func (h *CheckoutHandler) SetPaymentMethod(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req setPaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	sess, err := h.checkoutService.SetPaymentMethod(c.Request.Context(), userID, c.Param("sessionId"), req.PaymentMethodID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sessionView(sess)})
}

// CreateOrder handles POST /checkout/:sessionId/order
func (h *CheckoutHandler) CreateOrder(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	o, err := h.checkoutService.CreateOrder(c.Request.Context(), userID, c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Order created", "data": o})
}

// ListAgencies handles GET /checkout/agencies
func (h *CheckoutHandler) ListAgencies(c *gin.Context) {
	agencies, err := h.products.ActiveAgencies(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": agencies})
}

// sessionView shapes a checkout session for the API, with the derived state
func sessionView(sess *checkout.Session) gin.H {
	return gin.H{
		"id":                  sess.ID,
		"state":               sess.State(),
		"cart_id":             sess.CartID,
		"delivery_type":       sess.DeliveryType,
		"delivery_address_id": sess.DeliveryAddressID,
		"pickup_agency_id":    sess.PickupAgencyID,
		"payment_method_id":   sess.PaymentMethodID,
		"shipping_fee":        sess.ShippingFee,
		"order_id":            sess.OrderID,
		"expires_at":          sess.ExpiresAt,
	}
}
