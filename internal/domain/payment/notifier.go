// internal/domain/payment/notifier.go
package payment

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/user"
	"github.com/your-org/storefront-backend/internal/pkg/email"
	"gorm.io/gorm"
)

// Notifier is told when an order's payment completes. Notification failures
// never affect payment processing.
type Notifier interface {
	PaymentCompleted(ctx context.Context, orderID uint)
}

// EmailNotifier sends the order confirmation email on payment completion
type EmailNotifier struct {
	db     *gorm.DB
	mailer *email.EmailService
	log    *logrus.Logger
}

// NewEmailNotifier creates an email-backed payment notifier
func NewEmailNotifier(db *gorm.DB, mailer *email.EmailService, log *logrus.Logger) *EmailNotifier {
	return &EmailNotifier{db: db, mailer: mailer, log: log}
}

// PaymentCompleted sends the confirmation for a freshly paid order
func (n *EmailNotifier) PaymentCompleted(ctx context.Context, orderID uint) {
	var o order.Order
	if err := n.db.WithContext(ctx).Preload("Items").First(&o, orderID).Error; err != nil {
		n.log.WithError(err).WithField("order_id", orderID).Error("Failed to load order for confirmation email")
		return
	}

	var u user.User
	if err := n.db.WithContext(ctx).First(&u, o.UserID).Error; err != nil {
		n.log.WithError(err).WithField("order_id", orderID).Error("Failed to load user for confirmation email")
		return
	}

	data := email.OrderConfirmationData{
		UserName:    u.GetDisplayName(),
		OrderNumber: o.OrderNumber,
		TotalAmount: formatAmount(o.TotalAmount),
		Currency:    o.Currency,
	}
	for _, item := range o.Items {
		data.Items = append(data.Items, email.OrderLine{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    formatAmount(item.Price),
		})
	}

	if err := n.mailer.SendOrderConfirmation(ctx, u.Email, data); err != nil {
		n.log.WithError(err).WithField("order_id", orderID).Error("Failed to send order confirmation email")
	}
}

// formatAmount renders cents as a decimal string
func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
