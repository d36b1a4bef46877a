// AngelaMos | 2026
// dto.go

package cart

import (
	"github.com/shopspring/decimal"
)

type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"   validate:"omitempty,min=1,max=999"`
}

// UpdateQuantityRequest accepts any integer; values below one leave the
// line untouched.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"max=999"`
}

type LineResponse struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	ImageURL    string          `json:"image_url"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Available   bool            `json:"available"`
}

type CartResponse struct {
	Items       []LineResponse  `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

func ToCartResponse(lines []Line) CartResponse {
	items := make([]LineResponse, 0, len(lines))
	count := 0
	for i := range lines {
		l := &lines[i]
		items = append(items, LineResponse{
			ID:          l.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			ImageURL:    l.ImageURL,
			Price:       l.Price,
			Quantity:    l.Quantity,
			Subtotal:    l.Subtotal(),
			Available:   l.IsActive && l.Stock >= l.Quantity,
		})
		count += l.Quantity
	}

	return CartResponse{
		Items:       items,
		TotalAmount: Total(lines),
		ItemCount:   count,
	}
}
