// AngelaMos | 2026
// entity.go

package banner

import (
	"time"
)

type Banner struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Subtitle  string    `db:"subtitle"`
	ImageURL  string    `db:"image_url"`
	LinkURL   string    `db:"link_url"`
	IsActive  bool      `db:"is_active"`
	SortOrder int       `db:"sort_order"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type CreateBannerRequest struct {
	Title     string `json:"title"      validate:"required,max=200"`
	Subtitle  string `json:"subtitle"   validate:"max=500"`
	ImageURL  string `json:"image_url"  validate:"omitempty,max=500"`
	LinkURL   string `json:"link_url"   validate:"omitempty,max=500"`
	IsActive  bool   `json:"is_active"`
	SortOrder int    `json:"sort_order" validate:"min=0,max=1000"`
}

type UpdateBannerRequest struct {
	Title     *string `json:"title"      validate:"omitempty,min=1,max=200"`
	Subtitle  *string `json:"subtitle"   validate:"omitempty,max=500"`
	ImageURL  *string `json:"image_url"  validate:"omitempty,max=500"`
	LinkURL   *string `json:"link_url"   validate:"omitempty,max=500"`
	IsActive  *bool   `json:"is_active"`
	SortOrder *int    `json:"sort_order" validate:"omitempty,min=0,max=1000"`
}

func (r UpdateBannerRequest) apply(b *Banner) {
	if r.Title != nil {
		b.Title = *r.Title
	}
	if r.Subtitle != nil {
		b.Subtitle = *r.Subtitle
	}
	if r.ImageURL != nil {
		b.ImageURL = *r.ImageURL
	}
	if r.LinkURL != nil {
		b.LinkURL = *r.LinkURL
	}
	if r.IsActive != nil {
		b.IsActive = *r.IsActive
	}
	if r.SortOrder != nil {
		b.SortOrder = *r.SortOrder
	}
}

type BannerResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle"`
	ImageURL  string    `json:"image_url"`
	LinkURL   string    `json:"link_url"`
	IsActive  bool      `json:"is_active"`
	SortOrder int       `json:"sort_order"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ToBannerResponse(b *Banner) BannerResponse {
	return BannerResponse{
		ID:        b.ID,
		Title:     b.Title,
		Subtitle:  b.Subtitle,
		ImageURL:  b.ImageURL,
		LinkURL:   b.LinkURL,
		IsActive:  b.IsActive,
		SortOrder: b.SortOrder,
		UpdatedAt: b.UpdatedAt,
	}
}

func ToBannerResponseList(banners []Banner) []BannerResponse {
	out := make([]BannerResponse, 0, len(banners))
	for i := range banners {
		out = append(out, ToBannerResponse(&banners[i]))
	}
	return out
}
