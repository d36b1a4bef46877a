// AngelaMos | 2026
// dto.go

package product

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

type CreateProductRequest struct {
	Name        string          `json:"name"        validate:"required,min=1,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Category    string          `json:"category"    validate:"max=100"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"   validate:"omitempty,url,max=1000"`
	Stock       int             `json:"stock"       validate:"gte=0"`
	IsActive    *bool           `json:"is_active"`
	IsFeatured  bool            `json:"is_featured"`
}

func (r CreateProductRequest) checkPrice() error {
	return checkPrice(r.Price)
}

type UpdateProductRequest struct {
	Name        *string          `json:"name"        validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Category    *string          `json:"category"    validate:"omitempty,max=100"`
	Price       *decimal.Decimal `json:"price"`
	ImageURL    *string          `json:"image_url"   validate:"omitempty,max=1000"`
	Stock       *int             `json:"stock"       validate:"omitempty,gte=0"`
	IsActive    *bool            `json:"is_active"`
	IsFeatured  *bool            `json:"is_featured"`
}

func (r UpdateProductRequest) apply(p *Product) error {
	if r.Price != nil {
		if err := checkPrice(*r.Price); err != nil {
			return err
		}
		p.Price = *r.Price
	}
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.Category != nil {
		p.Category = *r.Category
	}
	if r.ImageURL != nil {
		p.ImageURL = *r.ImageURL
	}
	if r.Stock != nil {
		p.Stock = *r.Stock
	}
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
	if r.IsFeatured != nil {
		p.IsFeatured = *r.IsFeatured
	}
	return nil
}

// NUMERIC(10,2) holds at most 99,999,999.99.
var maxPrice = decimal.RequireFromString("99999999.99")

func checkPrice(price decimal.Decimal) error {
	if price.IsNegative() || price.GreaterThan(maxPrice) {
		return fmt.Errorf("price out of range: %w", core.ErrInvalidInput)
	}
	if !price.Equal(price.Round(2)) {
		return fmt.Errorf("price has more than two decimals: %w", core.ErrInvalidInput)
	}
	return nil
}

type ListProductsParams struct {
	Page            int
	PageSize        int
	Search          string
	Category        string
	Featured        *bool
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	Sort            string
	Order           string
	IncludeInactive bool
}

var sortColumns = map[string]string{
	"created_at": "created_at",
	"price":      "price",
	"name":       "name",
}

func (p *ListProductsParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 24
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	if _, ok := sortColumns[p.Sort]; !ok {
		p.Sort = "created_at"
	}
	if p.Order != "asc" {
		p.Order = "desc"
	}
}

func (p *ListProductsParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type ProductResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	Stock       int             `json:"stock"`
	InStock     bool            `json:"in_stock"`
	IsActive    bool            `json:"is_active"`
	IsFeatured  bool            `json:"is_featured"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func ToProductResponse(p *Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		Stock:       p.Stock,
		InStock:     p.InStock(),
		IsActive:    p.IsActive,
		IsFeatured:  p.IsFeatured,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func ToProductResponseList(products []Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for i := range products {
		out = append(out, ToProductResponse(&products[i]))
	}
	return out
}

type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}
