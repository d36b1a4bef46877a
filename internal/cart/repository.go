// AngelaMos | 2026
// repository.go

package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

type Repository interface {
	List(ctx context.Context, userID string) ([]Line, error)
	Add(ctx context.Context, userID, productID string, quantity int) error
	UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) error
	Remove(ctx context.Context, userID, itemID string) error
	Clear(ctx context.Context, userID string) error
}

type repository struct {
	db core.DBTX
}

// NewRepository accepts a *sqlx.DB or a *sqlx.Tx so checkout can read and
// clear the cart inside its transaction.
func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, userID string) ([]Line, error) {
	query := `
		SELECT c.id, c.user_id, c.product_id, c.quantity, c.created_at, c.updated_at,
		       p.name AS product_name, p.price, p.image_url, p.stock, p.is_active
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at, c.id`

	var lines []Line
	if err := r.db.SelectContext(ctx, &lines, query, userID); err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}

	return lines, nil
}

// Add inserts a line or merges quantity into the existing (user, product)
// line. Inactive or unknown products affect no rows.
func (r *repository) Add(ctx context.Context, userID, productID string, quantity int) error {
	query := `
		INSERT INTO cart_items (id, user_id, product_id, quantity)
		SELECT $1, $2, p.id, $4
		FROM products p
		WHERE p.id = $3 AND p.is_active = true
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity,
		    updated_at = NOW()`

	return r.execOne(ctx, "add cart item", query,
		uuid.New().String(), userID, productID, quantity)
}

func (r *repository) UpdateQuantity(
	ctx context.Context,
	userID, itemID string,
	quantity int,
) error {
	query := `
		UPDATE cart_items
		SET quantity = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`

	return r.execOne(ctx, "update cart item", query, itemID, userID, quantity)
}

func (r *repository) Remove(ctx context.Context, userID, itemID string) error {
	return r.execOne(ctx, "remove cart item",
		`DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, itemID, userID)
}

func (r *repository) Clear(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (r *repository) execOne(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if core.IsCheckViolation(err) {
			return fmt.Errorf("%s: %w", op, core.ErrInvalidInput)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}
