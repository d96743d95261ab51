package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"rfpdesk/internal"
	"rfpdesk/internal/config"
)

// Mailer sends plain-text mail over SMTP.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func New(cfg config.Config) (*Mailer, error) {
	if err := cfg.Require("SMTP_HOST", cfg.SMTPHost); err != nil {
		return nil, err
	}
	if err := cfg.Require("SMTP_USER", cfg.SMTPUser); err != nil {
		return nil, err
	}
	if err := cfg.Require("SMTP_PASS", cfg.SMTPPassword); err != nil {
		return nil, err
	}
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
	}, nil
}

// Send delivers one message and returns its transport message id.
func (m *Mailer) Send(to, subject, body string) (string, error) {
	messageID := fmt.Sprintf("<%s@rfpdesk>", uuid.NewString())

	headers := []string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"Message-ID: " + messageID,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}
	msg := []byte(strings.Join(headers, "\r\n") + "\r\n")

	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, msg); err != nil {
		return "", eris.Wrapf(err, "mailer: send to %s", to)
	}

	zap.L().Info("email sent", zap.String("to", to), zap.String("message_id", messageID))
	return messageID, nil
}

// InvitationSubject carries the correlation token so vendor replies
// can be matched back to the RFP by subject substring.
func InvitationSubject(rfp internal.Rfp) string {
	return fmt.Sprintf("RFP - %s %s", rfp.Title, internal.CorrelationToken(rfp.ID))
}

// InvitationBody renders the plain-text invitation for one vendor.
func InvitationBody(rfp internal.Rfp, vendorName string) string {
	items := make([]string, 0, len(rfp.Items))
	for _, item := range rfp.Items {
		items = append(items, fmt.Sprintf("- %s x %s", formatQuantity(item.Quantity), item.Name))
	}
	itemsText := strings.Join(items, "\n")
	if itemsText == "" {
		itemsText = "- (not specified)"
	}

	return strings.TrimSpace(fmt.Sprintf(`Hello %s,

We would like to invite you to submit a proposal for the following RFP:

Title: %s
Budget: %s %s
Delivery deadline (days): %s
Payment terms: %s
Warranty terms: %s

Requested items:
%s

Please reply to this email with your proposal, including pricing, delivery time, payment terms, and warranty details.
Make sure the subject line keeps this token so we can match it: %s

Best regards,
Procurement Team`,
		vendorName,
		rfp.Title,
		orNA(floatText(rfp.Budget)), orEmpty(rfp.Currency),
		orNA(intText(rfp.DeliveryDeadlineDays)),
		orNA(strText(rfp.PaymentTerms)),
		orNA(strText(rfp.WarrantyTerms)),
		itemsText,
		internal.CorrelationToken(rfp.ID),
	))
}

func formatQuantity(q float64) string {
	if q == float64(int64(q)) {
		return fmt.Sprintf("%d", int64(q))
	}
	return fmt.Sprintf("%g", q)
}

func floatText(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%g", *v)
}

func intText(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func strText(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func orEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
