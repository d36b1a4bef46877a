// AngelaMos | 2026
// review.go

package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

type Review struct {
	ID         string    `db:"id"`
	ProductID  string    `db:"product_id"`
	UserID     string    `db:"user_id"`
	AuthorName string    `db:"author_name"`
	Rating     int       `db:"rating"`
	Comment    string    `db:"comment"`
	CreatedAt  time.Time `db:"created_at"`
}

type Summary struct {
	Count   int             `db:"count"   json:"count"`
	Average decimal.Decimal `db:"average" json:"average"`
}

type CreateReviewRequest struct {
	Rating  int    `json:"rating"  validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

type ReviewResponse struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	AuthorName string    `json:"author_name"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

type ListResponse struct {
	Reviews []ReviewResponse `json:"reviews"`
	Summary Summary          `json:"summary"`
}

func ToReviewResponse(r *Review) ReviewResponse {
	return ReviewResponse{
		ID:         r.ID,
		ProductID:  r.ProductID,
		AuthorName: r.AuthorName,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt,
	}
}

type Repository interface {
	Create(ctx context.Context, r *Review) error
	ListForProduct(ctx context.Context, productID string, limit, offset int) ([]Review, error)
	Summarize(ctx context.Context, productID string) (Summary, error)
	Delete(ctx context.Context, id string) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// Create fails with ErrDuplicateKey when the user already reviewed the
// product and ErrNotFound when the product is unknown or inactive.
func (r *repository) Create(ctx context.Context, rv *Review) error {
	query := `
		INSERT INTO reviews (id, product_id, user_id, rating, comment)
		SELECT $1, p.id, $3, $4, $5
		FROM products p
		WHERE p.id = $2 AND p.is_active = true
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, query,
		rv.ID, rv.ProductID, rv.UserID, rv.Rating, rv.Comment,
	).Scan(&rv.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("create review: %w", core.ErrNotFound)
		case core.IsDuplicateKeyError(err):
			return fmt.Errorf("create review: %w", core.ErrDuplicateKey)
		case core.IsCheckViolation(err):
			return fmt.Errorf("create review: %w", core.ErrInvalidInput)
		}
		return fmt.Errorf("create review: %w", err)
	}

	return nil
}

func (r *repository) ListForProduct(
	ctx context.Context,
	productID string,
	limit, offset int,
) ([]Review, error) {
	query := `
		SELECT rv.id, rv.product_id, rv.user_id, rv.rating, rv.comment, rv.created_at,
		       COALESCE(NULLIF(pr.full_name, ''), NULLIF(u.full_name, ''), 'Customer') AS author_name
		FROM reviews rv
		JOIN users u ON u.id = rv.user_id
		LEFT JOIN profiles pr ON pr.id = rv.user_id
		WHERE rv.product_id = $1
		ORDER BY rv.created_at DESC
		LIMIT $2 OFFSET $3`

	var reviews []Review
	if err := r.db.SelectContext(ctx, &reviews, query, productID, limit, offset); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	return reviews, nil
}

func (r *repository) Summarize(ctx context.Context, productID string) (Summary, error) {
	query := `
		SELECT COUNT(*) AS count,
		       COALESCE(ROUND(AVG(rating)::numeric, 2), 0) AS average
		FROM reviews
		WHERE product_id = $1`

	var s Summary
	if err := r.db.GetContext(ctx, &s, query, productID); err != nil {
		return Summary{}, fmt.Errorf("summarize reviews: %w", err)
	}

	return s, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete review: %w", core.ErrNotFound)
	}

	return nil
}
