// AngelaMos | 2026
// entity.go

package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line is a cart row joined with the product it points at.
type Line struct {
	ID          string          `db:"id"`
	UserID      string          `db:"user_id"`
	ProductID   string          `db:"product_id"`
	Quantity    int             `db:"quantity"`
	ProductName string          `db:"product_name"`
	Price       decimal.Decimal `db:"price"`
	ImageURL    string          `db:"image_url"`
	Stock       int             `db:"stock"`
	IsActive    bool            `db:"is_active"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (l *Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Total sums price times quantity over lines.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for i := range lines {
		total = total.Add(lines[i].Subtotal())
	}
	return total
}
