// AngelaMos | 2026
// events.go

package queue

import (
	"time"

	"github.com/carterperez-dev/harvest-table/internal/mail"
)

const (
	OrderConfirmedQueue    = "order.confirmed"
	AdminNotificationQueue = "admin.notification"
)

type OrderConfirmedEvent struct {
	mail.OrderConfirmation
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type AdminNotificationEvent struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	AdminEmail string `json:"admin_email,omitempty"`
}
