// AngelaMos | 2026
// repository.go

package banner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

type Repository interface {
	Create(ctx context.Context, b *Banner) error
	GetByID(ctx context.Context, id string) (*Banner, error)
	Update(ctx context.Context, b *Banner) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, activeOnly bool) ([]Banner, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const bannerColumns = `id, title, subtitle, image_url, link_url, is_active, sort_order, created_at, updated_at`

func (r *repository) Create(ctx context.Context, b *Banner) error {
	query := `
		INSERT INTO banner_settings (id, title, subtitle, image_url, link_url, is_active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		b.ID, b.Title, b.Subtitle, b.ImageURL, b.LinkURL, b.IsActive, b.SortOrder,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create banner: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Banner, error) {
	var b Banner
	err := r.db.GetContext(ctx, &b,
		`SELECT `+bannerColumns+` FROM banner_settings WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get banner: %w", core.ErrNotFound)
		}
		return nil, fmt.Errorf("get banner: %w", err)
	}
	return &b, nil
}

func (r *repository) Update(ctx context.Context, b *Banner) error {
	query := `
		UPDATE banner_settings
		SET title = $2, subtitle = $3, image_url = $4, link_url = $5,
		    is_active = $6, sort_order = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		b.ID, b.Title, b.Subtitle, b.ImageURL, b.LinkURL, b.IsActive, b.SortOrder,
	).Scan(&b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("update banner: %w", core.ErrNotFound)
		}
		return fmt.Errorf("update banner: %w", err)
	}

	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM banner_settings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete banner: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete banner: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete banner: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) List(ctx context.Context, activeOnly bool) ([]Banner, error) {
	query := `SELECT ` + bannerColumns + ` FROM banner_settings`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY sort_order, created_at`

	var banners []Banner
	if err := r.db.SelectContext(ctx, &banners, query); err != nil {
		return nil, fmt.Errorf("list banners: %w", err)
	}

	return banners, nil
}
