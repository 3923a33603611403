// internal/pkg/email/service.go
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
)

// Email represents an outgoing message
type Email struct {
	To          []string
	Subject     string
	HTMLContent string
}

// OrderConfirmationData feeds the order confirmation template
type OrderConfirmationData struct {
	UserName    string
	OrderNumber string
	TotalAmount string
	Currency    string
	Items       []OrderLine
}

// OrderLine is one row in the confirmation email
type OrderLine struct {
	Name     string
	Quantity int
	Price    string
}

// EmailService sends transactional email over SMTP
type EmailService struct {
	config *config.Config
	log    *logrus.Logger
	tmpl   *template.Template
}

// NewEmailService creates a new email service
func NewEmailService(cfg *config.Config, log *logrus.Logger) *EmailService {
	return &EmailService{
		config: cfg,
		log:    log,
		tmpl:   template.Must(template.New("order_confirmation").Parse(orderConfirmationTemplate)),
	}
}

const orderConfirmationTemplate = `
<html>
<body>
	<h2>Thank you for your order, {{.UserName}}!</h2>
	<p>Your order <strong>{{.OrderNumber}}</strong> has been confirmed.</p>
	<table>
		{{range .Items}}
		<tr><td>{{.Name}}</td><td>x{{.Quantity}}</td><td>{{.Price}}</td></tr>
		{{end}}
	</table>
	<p>Total: <strong>{{.TotalAmount}} {{.Currency}}</strong></p>
</body>
</html>`

// SendOrderConfirmation renders and sends the order confirmation
func (s *EmailService) SendOrderConfirmation(ctx context.Context, to string, data OrderConfirmationData) error {
	var body bytes.Buffer
	if err := s.tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render order confirmation: %w", err)
	}

	return s.Send(ctx, &Email{
		To:          []string{to},
		Subject:     fmt.Sprintf("Order confirmation %s", data.OrderNumber),
		HTMLContent: body.String(),
	})
}

// Send delivers an email over SMTP. An unconfigured SMTP host turns sending
// into a logged no-op, which keeps development environments mail-free.
func (s *EmailService) Send(ctx context.Context, msg *Email) error {
	if s.config.Email.SMTPHost == "" {
		s.log.WithFields(logrus.Fields{
			"to":      strings.Join(msg.To, ", "),
			"subject": msg.Subject,
		}).Info("SMTP not configured, skipping email")
		return nil
	}
	return s.sendSMTP(msg)
}
