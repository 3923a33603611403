// internal/domain/payment/status.go
package payment

import (
	"strings"

	"github.com/your-org/storefront-backend/internal/domain/order"
)

// statusOutcomes maps provider-reported statuses onto order statuses.
// Stripe reports english charge statuses; ePayco reports spanish ones.
// Anything not listed here counts as a decline.
var statusOutcomes = map[string]order.Status{
	"succeeded":   order.StatusPaymentCompleted,
	"approved":    order.StatusPaymentCompleted,
	"aceptada":    order.StatusPaymentCompleted,
	"pending":     order.StatusPending,
	"in_progress": order.StatusPending,
	"pendiente":   order.StatusPending,
}

// OutcomeFor maps a raw gateway status to the order status it implies.
// StatusPending means "no outcome yet"; the order is left alone until a
// webhook or verification settles it.
func OutcomeFor(raw string) order.Status {
	if s, ok := statusOutcomes[strings.ToLower(raw)]; ok {
		return s
	}
	return order.StatusPaymentFailed
}
