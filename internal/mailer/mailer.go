package mailer

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/config"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/models"
)

// Mailer sends transactional order emails. Every method is best-effort: it
// returns false instead of an error, logs the failure, and never panics past
// this boundary. Orders without a valid email address are skipped silently.
type Mailer interface {
	SendOrderConfirmation(order *models.Order) bool
	SendPaymentConfirmation(order *models.Order) bool
	SendOrderCompletion(order *models.Order) bool
	SendStatusUpdate(order *models.Order) bool
	SendContactReply(msg *models.ContactMessage) bool
}

type smtpMailer struct {
	dialer  *gomail.Dialer
	from    string
	enabled bool
}

func NewSMTPMailer(cfg config.SMTPConfig) Mailer {
	return &smtpMailer{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		enabled: cfg.Enabled,
	}
}

func (m *smtpMailer) SendOrderConfirmation(order *models.Order) bool {
	subject := fmt.Sprintf("Order %s received", order.OrderID)
	body := fmt.Sprintf(
		"Hello %s,\r\n\r\nWe received your exchange order %s.\r\n\r\n"+
			"You send: %s %s\r\nYou receive: %s %s\r\nRate: %s\r\n\r\n"+
			"Please send your payment to: %s\r\n\r\nDoogleOnline",
		order.FullName, order.OrderID,
		order.SendAmount.String(), order.SendMethod,
		order.ReceiveAmount.String(), order.ReceiveMethod,
		order.ExchangeRate.String(),
		order.PaymentWallet,
	)
	return m.send(order, subject, body)
}

func (m *smtpMailer) SendPaymentConfirmation(order *models.Order) bool {
	subject := fmt.Sprintf("Payment for order %s confirmed", order.OrderID)
	body := fmt.Sprintf(
		"Hello %s,\r\n\r\nYour payment for order %s has been confirmed and the "+
			"order is now being processed.\r\n\r\nDoogleOnline",
		order.FullName, order.OrderID,
	)
	return m.send(order, subject, body)
}

func (m *smtpMailer) SendOrderCompletion(order *models.Order) bool {
	subject := fmt.Sprintf("Order %s completed", order.OrderID)
	body := fmt.Sprintf(
		"Hello %s,\r\n\r\nYour order %s is complete. %s %s has been sent to %s.\r\n\r\nDoogleOnline",
		order.FullName, order.OrderID,
		order.ReceiveAmount.String(), order.ReceiveMethod,
		order.WalletAddress,
	)
	return m.send(order, subject, body)
}

func (m *smtpMailer) SendStatusUpdate(order *models.Order) bool {
	subject := fmt.Sprintf("Order %s status update", order.OrderID)
	body := fmt.Sprintf(
		"Hello %s,\r\n\r\nYour order %s is now: %s.\r\n\r\nDoogleOnline",
		order.FullName, order.OrderID, order.Status,
	)
	return m.send(order, subject, body)
}

func (m *smtpMailer) SendContactReply(msg *models.ContactMessage) bool {
	if !m.enabled || msg.Email == "" {
		return false
	}
	subject := fmt.Sprintf("Re: %s", msg.Subject)
	return m.deliver(msg.Email, subject, msg.AdminResponse)
}

func (m *smtpMailer) send(order *models.Order, subject, body string) bool {
	if !m.enabled {
		logrus.WithField("order_id", order.OrderID).Debug("mailer disabled, skipping email")
		return false
	}
	if order.Email == "" {
		logrus.WithField("order_id", order.OrderID).Debug("order has no email, skipping")
		return false
	}
	return m.deliver(order.Email, subject, body)
}

func (m *smtpMailer) deliver(to, subject, body string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("panic", r).Error("mailer panicked")
			ok = false
		}
	}()

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		logrus.WithError(err).WithField("to", to).Warn("failed to send email")
		return false
	}
	return true
}
