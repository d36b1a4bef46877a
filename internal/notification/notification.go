// AngelaMos | 2026
// notification.go

package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

const (
	TypeNewOrder    = "new_order"
	TypeOrderUpdate = "order_update"
	TypeNewReview   = "new_review"
	TypeGeneral     = "general"
)

type Notification struct {
	ID        string    `db:"id"         json:"id"`
	Type      string    `db:"type"       json:"type"`
	Title     string    `db:"title"      json:"title"`
	Message   string    `db:"message"    json:"message"`
	IsRead    bool      `db:"is_read"    json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type SendRequest struct {
	Type       string `json:"type"        validate:"required,max=50"`
	Title      string `json:"title"       validate:"required,max=200"`
	Message    string `json:"message"     validate:"required,max=2000"`
	AdminEmail string `json:"admin_email" validate:"omitempty,email"`
}

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	List(ctx context.Context, unreadOnly bool, limit, offset int) ([]Notification, int, error)
	MarkRead(ctx context.Context, id string) error
	CountUnread(ctx context.Context) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, n *Notification) error {
	err := r.db.GetContext(ctx, &n.CreatedAt, `
		INSERT INTO admin_notifications (id, type, title, message)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		n.ID, n.Type, n.Title, n.Message)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (r *repository) List(
	ctx context.Context,
	unreadOnly bool,
	limit, offset int,
) ([]Notification, int, error) {
	where := ""
	if unreadOnly {
		where = "WHERE is_read = false"
	}

	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM admin_notifications `+where); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	var items []Notification
	err := r.db.SelectContext(ctx, &items, `
		SELECT id, type, title, message, is_read, created_at
		FROM admin_notifications `+where+`
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	return items, total, nil
}

func (r *repository) MarkRead(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE admin_notifications SET is_read = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("mark notification read: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) CountUnread(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM admin_notifications WHERE is_read = false`)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}
