// internal/interfaces/http/handlers/payment.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/domain/payment"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
)

// PaymentHandler handles payment endpoints
type PaymentHandler struct {
	paymentService *payment.Service
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *payment.Service) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// ListMethods handles GET /payments/methods
func (h *PaymentHandler) ListMethods(c *gin.Context) {
	methods, err := h.paymentService.Methods(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": methods})
}

// ListBanks handles GET /payments/banks
func (h *PaymentHandler) ListBanks(c *gin.Context) {
	banks, err := h.paymentService.Banks(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": banks})
}

// tokenizeCardRequest carries raw card data. It is never persisted.
type tokenizeCardRequest struct {
	Number   string `json:"number" binding:"required"`
	ExpMonth string `json:"exp_month" binding:"required"`
	ExpYear  string `json:"exp_year" binding:"required"`
	CVC      string `json:"cvc" binding:"required"`
	Name     string `json:"name"`
}

// TokenizeCard handles POST /payments/card-token
func (h *PaymentHandler) TokenizeCard(c *gin.Context) {
	_, ok := mustUserID(c)
	if !ok {
		return
	}

	var req tokenizeCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	tok, err := h.paymentService.TokenizeCard(c.Request.Context(), payment.CardTokenInput{
		Number:     req.Number,
		ExpMonth:   req.ExpMonth,
		ExpYear:    req.ExpYear,
		CVC:        req.CVC,
		HolderName: req.Name,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": tok})
}

// processPaymentRequest carries a payment attempt against an order
type processPaymentRequest struct {
	OrderID uint `json:"order_id" binding:"required"`

	CardToken string `json:"card_token"`

	BankCode       string `json:"bank_code"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
}

// ProcessPayment handles POST /payments
func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req processPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	email, _ := middleware.GetUserEmailFromContext(c)

	result, err := h.paymentService.ProcessPayment(c.Request.Context(), userID, payment.ProcessPaymentInput{
		OrderID:        req.OrderID,
		CardToken:      req.CardToken,
		BankCode:       req.BankCode,
		DocumentType:   req.DocumentType,
		DocumentNumber: req.DocumentNumber,
		CustomerEmail:  email,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// VerifyPayment handles GET /payments/:orderId/verify?reference=...
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	orderID, err := strconv.ParseUint(c.Param("orderId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	reference := c.Query("reference")
	if reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing transaction reference"})
		return
	}

	result, err := h.paymentService.VerifyPayment(c.Request.Context(), userID, uint(orderID), reference)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
