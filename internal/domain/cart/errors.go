// internal/domain/cart/errors.go
package cart

import (
	"errors"
	"fmt"
)

var (
	// ErrCartNotFound is returned when no active cart matches the request
	ErrCartNotFound = errors.New("cart not found")

	// ErrItemNotFound is returned when the product has no line in the cart
	ErrItemNotFound = errors.New("item not found in cart")

	// ErrProductUnavailable is returned when the product is missing or inactive
	ErrProductUnavailable = errors.New("product not found or inactive")
)

// InsufficientStockError is returned when the requested quantity exceeds the
// available stock of a tracked product.
type InsufficientStockError struct {
	ProductID uint
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
