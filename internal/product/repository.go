// AngelaMos | 2026
// repository.go

package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id string, includeInactive bool) (*Product, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, params ListProductsParams) ([]Product, int, error)
	ListAll(ctx context.Context) ([]Product, error)
	Count(ctx context.Context) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const productColumns = `id, name, description, category, price, image_url,
	stock, is_active, is_featured, created_at, updated_at`

func (r *repository) Create(ctx context.Context, p *Product) error {
	query := `
		INSERT INTO products (
			id, name, description, category, price, image_url,
			stock, is_active, is_featured
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, p, query,
		p.ID,
		p.Name,
		p.Description,
		p.Category,
		p.Price,
		p.ImageURL,
		p.Stock,
		p.IsActive,
		p.IsFeatured,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create product: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create product: %w", err)
	}

	return nil
}

func (r *repository) GetByID(
	ctx context.Context,
	id string,
	includeInactive bool,
) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if !includeInactive {
		query += ` AND is_active = true`
	}

	var p Product
	err := r.db.GetContext(ctx, &p, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get product: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	return &p, nil
}

func (r *repository) Update(ctx context.Context, p *Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, category = $4, price = $5,
		    image_url = $6, stock = $7, is_active = $8, is_featured = $9,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &p.UpdatedAt, query,
		p.ID,
		p.Name,
		p.Description,
		p.Category,
		p.Price,
		p.ImageURL,
		p.Stock,
		p.IsActive,
		p.IsFeatured,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update product: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	return nil
}

// Delete removes a product that was never ordered. Ordered products are
// referenced by order_items and must be deactivated instead.
func (r *repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("delete product: %w", core.ErrConflict)
		}
		return fmt.Errorf("delete product: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete product: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListProductsParams,
) ([]Product, int, error) {
	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	if !params.IncludeInactive {
		conditions = append(conditions, "is_active = true")
	}

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(name ILIKE $%d OR description ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, params.Category)
		argIdx++
	}

	if params.Featured != nil {
		conditions = append(conditions, fmt.Sprintf("is_featured = $%d", argIdx))
		args = append(args, *params.Featured)
		argIdx++
	}

	if params.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price >= $%d", argIdx))
		args = append(args, *params.MinPrice)
		argIdx++
	}

	if params.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price <= $%d", argIdx))
		args = append(args, *params.MaxPrice)
		argIdx++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM products ` + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM products %s
		ORDER BY %s %s, id
		LIMIT $%d OFFSET $%d`,
		productColumns, whereClause,
		sortColumns[params.Sort], params.Order,
		argIdx, argIdx+1)
	args = append(args, params.PageSize, params.Offset())

	var products []Product
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}

	return products, total, nil
}

func (r *repository) ListAll(ctx context.Context) ([]Product, error) {
	var products []Product
	err := r.db.SelectContext(ctx, &products,
		`SELECT `+productColumns+` FROM products ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list all products: %w", err)
	}
	return products, nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM products`); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
