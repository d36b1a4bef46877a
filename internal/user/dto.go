// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type UpdateUserRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type ListUsersParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search"`
	Role     string `json:"role"`
}

func (p *ListUsersParams) Normalize() {
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

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToUserResponse(l *Listing) UserResponse {
	return UserResponse{
		ID:            l.ID,
		Email:         l.Email,
		FullName:      l.FullName,
		Role:          l.Role,
		EmailVerified: l.IsVerified(),
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}

func ToUserResponseList(listings []Listing) []UserResponse {
	responses := make([]UserResponse, 0, len(listings))
	for i := range listings {
		responses = append(responses, ToUserResponse(&listings[i]))
	}
	return responses
}
