// AngelaMos | 2026
// entity.go

package product

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Category    string          `db:"category"`
	Price       decimal.Decimal `db:"price"`
	ImageURL    string          `db:"image_url"`
	Stock       int             `db:"stock"`
	IsActive    bool            `db:"is_active"`
	IsFeatured  bool            `db:"is_featured"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (p *Product) InStock() bool {
	return p.Stock > 0
}
