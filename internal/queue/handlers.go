// AngelaMos | 2026
// handlers.go

package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/carterperez-dev/harvest-table/internal/mail"
)

type EmailSender interface {
	SendOrderConfirmation(ctx context.Context, c mail.OrderConfirmation) error
	SendAdminNotification(ctx context.Context, to, title, message string) error
}

// MailHandlers maps both queues onto the mailer. The same map backs the
// broker consumer and the dispatcher's local fallback.
func MailHandlers(sender EmailSender) map[string]Handler {
	return map[string]Handler{
		OrderConfirmedQueue: func(ctx context.Context, body []byte) error {
			var ev OrderConfirmedEvent
			if err := json.Unmarshal(body, &ev); err != nil {
				return fmt.Errorf("decode %s: %w", OrderConfirmedQueue, err)
			}
			return sender.SendOrderConfirmation(ctx, ev.OrderConfirmation)
		},
		AdminNotificationQueue: func(ctx context.Context, body []byte) error {
			var ev AdminNotificationEvent
			if err := json.Unmarshal(body, &ev); err != nil {
				return fmt.Errorf("decode %s: %w", AdminNotificationQueue, err)
			}
			return sender.SendAdminNotification(ctx, ev.AdminEmail, ev.Title, ev.Message)
		},
	}
}
