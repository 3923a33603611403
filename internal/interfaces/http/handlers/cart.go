// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
)

// CartSessionHeader carries the guest cart token on every cart request
const CartSessionHeader = "X-Cart-Session"

// CartHandler handles cart endpoints
type CartHandler struct {
	cartService *cart.Service
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService *cart.Service) *CartHandler {
	return &CartHandler{cartService: cartService}
}

// identity pulls the optional user and the guest token off the request
func (h *CartHandler) identity(c *gin.Context) (*uint, string) {
	var userID *uint
	if id, ok := middleware.GetUserIDFromContext(c); ok {
		userID = &id
	}
	return userID, c.GetHeader(CartSessionHeader)
}

// respond writes the cart view and echoes the session token so guests can
// carry it forward
func (h *CartHandler) respond(c *gin.Context, view *cart.CartView) {
	if view.SessionToken != "" {
		c.Header(CartSessionHeader, view.SessionToken)
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	userID, token := h.identity(c)

	view, err := h.cartService.GetCart(c.Request.Context(), userID, token)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, view)
}

// AddItem handles POST /cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	userID, token := h.identity(c)

	var req cart.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	view, err := h.cartService.AddItem(c.Request.Context(), userID, token, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, view)
}

// UpdateItem handles PUT /cart/items/:productId
func (h *CartHandler) UpdateItem(c *gin.Context) {
	userID, token := h.identity(c)

	productID, err := strconv.ParseUint(c.Param("productId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var req cart.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	view, err := h.cartService.UpdateItem(c.Request.Context(), userID, token, uint(productID), req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, view)
}

// RemoveItem handles DELETE /cart/items/:productId
func (h *CartHandler) RemoveItem(c *gin.Context) {
	userID, token := h.identity(c)

	productID, err := strconv.ParseUint(c.Param("productId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	view, err := h.cartService.RemoveItem(c.Request.Context(), userID, token, uint(productID))
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, view)
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	userID, token := h.identity(c)

	if err := h.cartService.Clear(c.Request.Context(), userID, token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}
