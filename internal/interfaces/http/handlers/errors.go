// internal/interfaces/http/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/checkout"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
	"github.com/your-org/storefront-backend/internal/domain/user"
)

// respondError maps domain errors onto HTTP responses so every handler
// reports the same failure the same way.
func respondError(c *gin.Context, err error) {
	var (
		stockErr      *cart.InsufficientStockError
		incompleteErr *checkout.IncompleteCheckoutError
		deliveryErr   *checkout.InvalidDeliveryTargetError
		createdErr    *checkout.OrderAlreadyCreatedError
		transitionErr *order.InvalidTransitionError
		rangeErr      *payment.AmountOutOfRangeError
		gatewayErr    *payment.GatewayError
	)

	switch {
	// 404
	case errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, checkout.ErrSessionNotFound),
		errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, user.ErrAddressNotFound),
		errors.Is(err, payment.ErrUnknownTransaction):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	// 409
	case errors.As(err, &createdErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":    createdErr.Error(),
			"order_id": createdErr.OrderID,
		})
	case errors.Is(err, checkout.ErrOrderCreationInProgress),
		errors.Is(err, payment.ErrPaymentInProgress),
		errors.Is(err, user.ErrEmailTaken),
		errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	// 410
	case errors.Is(err, checkout.ErrSessionExpired):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})

	// 401
	case errors.Is(err, user.ErrInvalidCredentials),
		errors.Is(err, user.ErrSessionRevoked):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})

	// 402
	case errors.As(err, &gatewayErr):
		if gatewayErr.Ambiguous {
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "payment outcome unknown, do not retry yet",
			})
			return
		}
		c.JSON(http.StatusPaymentRequired, gin.H{"error": gatewayErr.Error()})
	case errors.Is(err, payment.ErrOrderNotPayable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	// 400
	case errors.As(err, &stockErr),
		errors.As(err, &incompleteErr),
		errors.As(err, &deliveryErr),
		errors.As(err, &rangeErr),
		errors.Is(err, cart.ErrProductUnavailable),
		errors.Is(err, checkout.ErrNoActiveCart),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, checkout.ErrPaymentMethodUnavailable),
		errors.Is(err, payment.ErrCardTokenRequired),
		errors.Is(err, payment.ErrBankRequired),
		errors.Is(err, payment.ErrMethodDisabled):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
