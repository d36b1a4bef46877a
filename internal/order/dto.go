// AngelaMos | 2026
// dto.go

package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CheckoutItem struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"   validate:"required,min=1,max=999"`
}

// CheckoutRequest carries the delivery details. Signed-in customers may
// omit fields stored on their profile and omit Items to check out their
// cart; guests must send everything.
type CheckoutRequest struct {
	CustomerName  string         `json:"customer_name"  validate:"omitempty,max=100"`
	Email         string         `json:"email"          validate:"omitempty,email,max=255"`
	Phone         string         `json:"phone"          validate:"omitempty,min=6,max=32"`
	AddressLine1  string         `json:"address_line1"  validate:"omitempty,max=200"`
	AddressLine2  string         `json:"address_line2"  validate:"omitempty,max=200"`
	City          string         `json:"city"           validate:"omitempty,max=100"`
	State         string         `json:"state"          validate:"omitempty,max=100"`
	PostalCode    string         `json:"postal_code"    validate:"omitempty,max=20"`
	Notes         string         `json:"notes"          validate:"omitempty,max=1000"`
	PaymentMethod string         `json:"payment_method" validate:"omitempty,oneof=cod"`
	Items         []CheckoutItem `json:"items"          validate:"omitempty,max=100,dive"`
}

// Customer identifies who is checking out. A zero value is a guest.
type Customer struct {
	UserID string
	Email  string
}

func (c Customer) IsGuest() bool {
	return c.UserID == ""
}

// missingDelivery lists required delivery fields that are still empty.
func (o *Order) missingDelivery() []string {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("customer_name", o.CustomerName)
	check("email", o.Email)
	check("phone", o.Phone)
	check("address_line1", o.AddressLine1)
	check("city", o.City)
	check("postal_code", o.PostalCode)
	return missing
}

type UpdateStatusRequest struct {
	Status                *string `json:"status"                  validate:"omitempty,oneof=pending confirmed preparing out_for_delivery delivered cancelled"`
	ShippingStatus        *string `json:"shipping_status"         validate:"omitempty,oneof=not_shipped shipped in_transit delivered"`
	CourierName           *string `json:"courier_name"            validate:"omitempty,max=100"`
	CourierTrackingNumber *string `json:"courier_tracking_number" validate:"omitempty,max=100"`
}

type ListOrdersParams struct {
	Page     int
	PageSize int
	Status   string
	Search   string
}

func (p *ListOrdersParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListOrdersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type ItemResponse struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type OrderResponse struct {
	ID                    string          `json:"id"`
	TrackingCode          string          `json:"tracking_code"`
	UserID                *string         `json:"user_id,omitempty"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	CustomerName          string          `json:"customer_name"`
	Email                 string          `json:"email"`
	Phone                 string          `json:"phone"`
	AddressLine1          string          `json:"address_line1"`
	AddressLine2          string          `json:"address_line2"`
	City                  string          `json:"city"`
	State                 string          `json:"state"`
	PostalCode            string          `json:"postal_code"`
	Notes                 string          `json:"notes"`
	PaymentMethod         string          `json:"payment_method"`
	Status                string          `json:"status"`
	ShippingStatus        string          `json:"shipping_status"`
	CourierName           string          `json:"courier_name"`
	CourierTrackingNumber string          `json:"courier_tracking_number"`
	Items                 []ItemResponse  `json:"items"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// TrackingResponse is what an anonymous caller holding the tracking code
// may see.
type TrackingResponse struct {
	TrackingCode          string          `json:"tracking_code"`
	Status                string          `json:"status"`
	ShippingStatus        string          `json:"shipping_status"`
	CourierName           string          `json:"courier_name"`
	CourierTrackingNumber string          `json:"courier_tracking_number"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	Items                 []ItemResponse  `json:"items"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

func toItemResponses(items []Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for i := range items {
		it := &items[i]
		out = append(out, ItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
			Subtotal:    it.Subtotal(),
		})
	}
	return out
}

func ToOrderResponse(o *Order) OrderResponse {
	return OrderResponse{
		ID:                    o.ID,
		TrackingCode:          o.TrackingCode,
		UserID:                o.UserID,
		TotalAmount:           o.TotalAmount,
		CustomerName:          o.CustomerName,
		Email:                 o.Email,
		Phone:                 o.Phone,
		AddressLine1:          o.AddressLine1,
		AddressLine2:          o.AddressLine2,
		City:                  o.City,
		State:                 o.State,
		PostalCode:            o.PostalCode,
		Notes:                 o.Notes,
		PaymentMethod:         o.PaymentMethod,
		Status:                string(o.Status),
		ShippingStatus:        string(o.ShippingStatus),
		CourierName:           o.CourierName,
		CourierTrackingNumber: o.CourierTrackingNumber,
		Items:                 toItemResponses(o.Items),
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}
}

func ToOrderResponseList(orders []Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, ToOrderResponse(&orders[i]))
	}
	return out
}

func ToTrackingResponse(o *Order) TrackingResponse {
	return TrackingResponse{
		TrackingCode:          o.TrackingCode,
		Status:                string(o.Status),
		ShippingStatus:        string(o.ShippingStatus),
		CourierName:           o.CourierName,
		CourierTrackingNumber: o.CourierTrackingNumber,
		TotalAmount:           o.TotalAmount,
		Items:                 toItemResponses(o.Items),
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}
}
