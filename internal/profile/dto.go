// AngelaMos | 2026
// dto.go

package profile

import (
	"time"
)

type UpdateProfileRequest struct {
	FullName     *string `json:"full_name"     validate:"omitempty,max=100"`
	AddressLine1 *string `json:"address_line1" validate:"omitempty,max=200"`
	AddressLine2 *string `json:"address_line2" validate:"omitempty,max=200"`
	City         *string `json:"city"          validate:"omitempty,max=100"`
	State        *string `json:"state"         validate:"omitempty,max=100"`
	PostalCode   *string `json:"postal_code"   validate:"omitempty,max=20"`
	Phone        *string `json:"phone"         validate:"omitempty,min=6,max=32"`
}

func (r UpdateProfileRequest) apply(p *Profile) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.FullName, r.FullName)
	set(&p.AddressLine1, r.AddressLine1)
	set(&p.AddressLine2, r.AddressLine2)
	set(&p.City, r.City)
	set(&p.State, r.State)
	set(&p.PostalCode, r.PostalCode)
	set(&p.Phone, r.Phone)
}

type ProfileResponse struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	AddressLine1 string    `json:"address_line1"`
	AddressLine2 string    `json:"address_line2"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	PostalCode   string    `json:"postal_code"`
	Phone        string    `json:"phone"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func ToProfileResponse(p *Profile) ProfileResponse {
	return ProfileResponse{
		ID:           p.ID,
		FullName:     p.FullName,
		Role:         p.Role.String(),
		AddressLine1: p.AddressLine1,
		AddressLine2: p.AddressLine2,
		City:         p.City,
		State:        p.State,
		PostalCode:   p.PostalCode,
		Phone:        p.Phone,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
