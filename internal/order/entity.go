// AngelaMos | 2026
// entity.go

package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

var statuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

func ParseStatus(s string) (Status, error) {
	for _, st := range statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("parse status %q: %w", s, core.ErrInvalidInput)
}

// IsFinal reports whether no further status change is allowed.
func (s Status) IsFinal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type ShippingStatus string

const (
	ShippingNotShipped ShippingStatus = "not_shipped"
	ShippingShipped    ShippingStatus = "shipped"
	ShippingInTransit  ShippingStatus = "in_transit"
	ShippingDelivered  ShippingStatus = "delivered"
)

func ParseShippingStatus(s string) (ShippingStatus, error) {
	switch ShippingStatus(s) {
	case ShippingNotShipped, ShippingShipped, ShippingInTransit, ShippingDelivered:
		return ShippingStatus(s), nil
	default:
		return "", fmt.Errorf("parse shipping status %q: %w", s, core.ErrInvalidInput)
	}
}

const PaymentMethodCOD = "cod"

type Order struct {
	ID                    string          `db:"id"`
	UserID                *string         `db:"user_id"`
	TrackingCode          string          `db:"tracking_code"`
	TotalAmount           decimal.Decimal `db:"total_amount"`
	CustomerName          string          `db:"customer_name"`
	Email                 string          `db:"email"`
	Phone                 string          `db:"phone"`
	AddressLine1          string          `db:"address_line1"`
	AddressLine2          string          `db:"address_line2"`
	City                  string          `db:"city"`
	State                 string          `db:"state"`
	PostalCode            string          `db:"postal_code"`
	Notes                 string          `db:"notes"`
	PaymentMethod         string          `db:"payment_method"`
	Status                Status          `db:"status"`
	ShippingStatus        ShippingStatus  `db:"shipping_status"`
	CourierName           string          `db:"courier_name"`
	CourierTrackingNumber string          `db:"courier_tracking_number"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at"`

	Items []Item `db:"-"`
}

func (o *Order) IsGuest() bool {
	return o.UserID == nil
}

func (o *Order) Address() string {
	parts := []string{o.AddressLine1, o.AddressLine2, o.City, o.State, o.PostalCode}
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

type Item struct {
	ID          string          `db:"id"`
	OrderID     string          `db:"order_id"`
	ProductID   string          `db:"product_id"`
	ProductName string          `db:"product_name"`
	Quantity    int             `db:"quantity"`
	Price       decimal.Decimal `db:"price"`
}

func (i *Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Total sums captured price times quantity.
func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].Subtotal())
	}
	return total
}
