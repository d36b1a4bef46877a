// AngelaMos | 2026
// mailer.go

package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/carterperez-dev/harvest-table/internal/config"
)

// Mailer sends transactional email over SMTP. Without SMTP credentials it
// logs each message instead of sending it.
type Mailer struct {
	dialer     *gomail.Dialer
	from       string
	adminEmail string
	storeName  string
	logger     *slog.Logger
}

func New(cfg config.MailConfig, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Mailer{
		from:       cfg.From,
		adminEmail: cfg.AdminEmail,
		storeName:  cfg.StoreName,
		logger:     logger,
	}

	if cfg.Enabled() {
		m.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
		if m.from == "" {
			m.from = cfg.Username
		}
	} else {
		logger.Warn("smtp not configured, email delivery disabled")
	}

	return m
}

func (m *Mailer) AdminEmail() string {
	return m.adminEmail
}

func (m *Mailer) SendVerification(ctx context.Context, to, name, link string) error {
	return m.send(ctx, to, "Confirm your email", verificationTmpl, map[string]any{
		"Store": m.storeName,
		"Name":  name,
		"Link":  link,
	})
}

func (m *Mailer) SendPasswordResetCode(ctx context.Context, to, code string) error {
	return m.send(ctx, to, "Your password reset code", resetCodeTmpl, map[string]any{
		"Store": m.storeName,
		"Code":  code,
	})
}

func (m *Mailer) SendOrderConfirmation(ctx context.Context, c OrderConfirmation) error {
	return m.send(ctx, c.Email, "Order confirmed: "+c.TrackingCode, orderTmpl, map[string]any{
		"Store": m.storeName,
		"Order": c,
	})
}

// SendAdminNotification mails to, falling back to the configured admin
// address.
func (m *Mailer) SendAdminNotification(ctx context.Context, to, title, message string) error {
	if to == "" {
		to = m.adminEmail
	}
	if to == "" {
		m.logger.Debug("admin notification email skipped, no recipient", "title", title)
		return nil
	}

	return m.send(ctx, to, "["+m.storeName+"] "+title, adminTmpl, map[string]any{
		"Title":   title,
		"Message": message,
	})
}

func (m *Mailer) send(
	ctx context.Context,
	to, subject string,
	tmpl *template.Template,
	data any,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}

	if m.dialer == nil {
		m.logger.Info("email delivery disabled, message logged",
			"to", to,
			"subject", subject,
			"body", body.String(),
		)
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body.String())

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send %s: %w", tmpl.Name(), err)
	}

	m.logger.Info("email sent", "to", to, "template", tmpl.Name())
	return nil
}
