// AngelaMos | 2026
// entity.go

package profile

import (
	"fmt"
	"time"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

// Role is closed: storage only ever holds "user" or "admin".
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("parse role %q: %w", s, core.ErrInvalidInput)
	}
}

func (r Role) IsAdmin() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleUser:
		return false
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

type Profile struct {
	ID           string    `db:"id"`
	FullName     string    `db:"full_name"`
	Role         Role      `db:"role"`
	AddressLine1 string    `db:"address_line1"`
	AddressLine2 string    `db:"address_line2"`
	City         string    `db:"city"`
	State        string    `db:"state"`
	PostalCode   string    `db:"postal_code"`
	Phone        string    `db:"phone"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// HasAddress reports whether the profile carries enough to ship an order.
func (p *Profile) HasAddress() bool {
	return p.AddressLine1 != "" && p.City != "" && p.PostalCode != ""
}
