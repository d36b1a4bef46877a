// AngelaMos | 2026
// repository.go

package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

// PricedProduct is the catalog row captured at checkout.
type PricedProduct struct {
	ID       string          `db:"id"`
	Name     string          `db:"name"`
	Price    decimal.Decimal `db:"price"`
	IsActive bool            `db:"is_active"`
}

type StatusCount struct {
	Status Status `db:"status"`
	Count  int    `db:"count"`
}

type Repository interface {
	PricedProducts(ctx context.Context, ids []string) (map[string]PricedProduct, error)
	Create(ctx context.Context, o *Order) error
	InsertItems(ctx context.Context, items []Item) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByTrackingCode(ctx context.Context, code string) (*Order, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]Order, int, error)
	List(ctx context.Context, params ListOrdersParams) ([]Order, int, error)
	Items(ctx context.Context, orderIDs ...string) (map[string][]Item, error)
	UpdateStatus(ctx context.Context, o *Order) error
	CountByStatus(ctx context.Context) ([]StatusCount, error)
	Revenue(ctx context.Context) (decimal.Decimal, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const orderColumns = `
	id, user_id, tracking_code, total_amount, customer_name, email, phone,
	address_line1, address_line2, city, state, postal_code, notes,
	payment_method, status, shipping_status, courier_name,
	courier_tracking_number, created_at, updated_at`

func (r *repository) PricedProducts(
	ctx context.Context,
	ids []string,
) (map[string]PricedProduct, error) {
	out := make(map[string]PricedProduct, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(
		`SELECT id, name, price, is_active FROM products WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build product price query: %w", err)
	}

	var rows []PricedProduct
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load product prices: %w", err)
	}

	for _, p := range rows {
		out[p.ID] = p
	}

	return out, nil
}

func (r *repository) Create(ctx context.Context, o *Order) error {
	query := `
		INSERT INTO orders (
			id, user_id, tracking_code, total_amount, customer_name, email,
			phone, address_line1, address_line2, city, state, postal_code,
			notes, payment_method, status, shipping_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		o.ID,
		o.UserID,
		o.TrackingCode,
		o.TotalAmount,
		o.CustomerName,
		o.Email,
		o.Phone,
		o.AddressLine1,
		o.AddressLine2,
		o.City,
		o.State,
		o.PostalCode,
		o.Notes,
		o.PaymentMethod,
		o.Status,
		o.ShippingStatus,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create order: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create order: %w", err)
	}

	return nil
}

func (r *repository) InsertItems(ctx context.Context, items []Item) error {
	query := `
		INSERT INTO order_items (id, order_id, product_id, product_name, quantity, price)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for i := range items {
		it := &items[i]
		if _, err := r.db.ExecContext(ctx, query,
			it.ID, it.OrderID, it.ProductID, it.ProductName, it.Quantity, it.Price,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Order, error) {
	return r.getOne(ctx, "get order",
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *repository) GetByTrackingCode(ctx context.Context, code string) (*Order, error) {
	return r.getOne(ctx, "get order by tracking code",
		`SELECT `+orderColumns+` FROM orders WHERE tracking_code = $1`, code)
}

func (r *repository) getOne(
	ctx context.Context,
	op, query string,
	args ...any,
) (*Order, error) {
	var o Order
	if err := r.db.GetContext(ctx, &o, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &o, nil
}

func (r *repository) ListForUser(
	ctx context.Context,
	userID string,
	limit, offset int,
) ([]Order, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("count user orders: %w", err)
	}

	var orders []Order
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &orders, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list user orders: %w", err)
	}

	return orders, total, nil
}

func (r *repository) List(
	ctx context.Context,
	params ListOrdersParams,
) ([]Order, int, error) {
	var (
		conds []string
		args  []any
	)

	if params.Status != "" {
		args = append(args, params.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	if params.Search != "" {
		args = append(args, "%"+params.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(tracking_code ILIKE $%d OR customer_name ILIKE $%d OR email ILIKE $%d)",
			n, n, n))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM orders`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	args = append(args, params.PageSize, params.Offset())
	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	var orders []Order
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	return orders, total, nil
}

func (r *repository) Items(
	ctx context.Context,
	orderIDs ...string,
) (map[string][]Item, error) {
	out := make(map[string][]Item, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, order_id, product_id, product_name, quantity, price
		FROM order_items
		WHERE order_id IN (?)
		ORDER BY product_name, id`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("build order items query: %w", err)
	}

	var items []Item
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	for _, it := range items {
		out[it.OrderID] = append(out[it.OrderID], it)
	}

	return out, nil
}

func (r *repository) UpdateStatus(ctx context.Context, o *Order) error {
	query := `
		UPDATE orders
		SET status = $2,
		    shipping_status = $3,
		    courier_name = $4,
		    courier_tracking_number = $5,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		o.ID,
		o.Status,
		o.ShippingStatus,
		o.CourierName,
		o.CourierTrackingNumber,
	).Scan(&o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("update order status: %w", core.ErrNotFound)
		}
		return fmt.Errorf("update order status: %w", err)
	}

	return nil
}

func (r *repository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	if err := r.db.SelectContext(ctx, &counts,
		`SELECT status, COUNT(*) AS count FROM orders GROUP BY status ORDER BY status`); err != nil {
		return nil, fmt.Errorf("count orders by status: %w", err)
	}
	return counts, nil
}

// Revenue sums delivered orders only.
func (r *repository) Revenue(ctx context.Context) (decimal.Decimal, error) {
	var revenue decimal.Decimal
	if err := r.db.GetContext(ctx, &revenue,
		`SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE status = $1`,
		StatusDelivered); err != nil {
		return decimal.Zero, fmt.Errorf("sum revenue: %w", err)
	}
	return revenue, nil
}
