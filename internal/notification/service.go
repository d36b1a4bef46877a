// AngelaMos | 2026
// service.go

package notification

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/carterperez-dev/harvest-table/internal/queue"
	"github.com/carterperez-dev/harvest-table/internal/realtime"
)

const table = "admin_notifications"

type Dispatcher interface {
	Dispatch(ctx context.Context, queue string, v any) error
}

type Broadcaster interface {
	Publish(ctx context.Context, table, action string, record any)
}

type Service struct {
	repo       Repository
	dispatcher Dispatcher
	live       Broadcaster
}

func NewService(repo Repository, dispatcher Dispatcher, live Broadcaster) *Service {
	return &Service{repo: repo, dispatcher: dispatcher, live: live}
}

// Send stores the notification, pushes it to connected dashboards and
// queues an email to the admin. Only the insert can fail the call.
func (s *Service) Send(ctx context.Context, req SendRequest) (*Notification, error) {
	n := &Notification{
		ID:      uuid.New().String(),
		Type:    req.Type,
		Title:   req.Title,
		Message: req.Message,
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if s.live != nil {
		s.live.Publish(ctx, table, realtime.ActionInsert, n)
	}

	if s.dispatcher != nil {
		err := s.dispatcher.Dispatch(ctx, queue.AdminNotificationQueue, queue.AdminNotificationEvent{
			Type:       req.Type,
			Title:      req.Title,
			Message:    req.Message,
			AdminEmail: req.AdminEmail,
		})
		if err != nil {
			slog.Warn("admin notification email not queued",
				"notification_id", n.ID,
				"error", err,
			)
		}
	}

	return n, nil
}

// Notify is the fire-and-forget form used by other services.
func (s *Service) Notify(ctx context.Context, kind, title, message string) {
	if _, err := s.Send(ctx, SendRequest{Type: kind, Title: title, Message: message}); err != nil {
		slog.Warn("admin notification failed", "type", kind, "error", err)
	}
}

func (s *Service) List(
	ctx context.Context,
	unreadOnly bool,
	page, pageSize int,
) ([]Notification, int, error) {
	return s.repo.List(ctx, unreadOnly, pageSize, (page-1)*pageSize)
}

func (s *Service) MarkRead(ctx context.Context, id string) error {
	return s.repo.MarkRead(ctx, id)
}

func (s *Service) CountUnread(ctx context.Context) (int, error) {
	return s.repo.CountUnread(ctx)
}
