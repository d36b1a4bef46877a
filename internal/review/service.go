// AngelaMos | 2026
// service.go

package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/harvest-table/internal/notification"
)

type Notifier interface {
	Notify(ctx context.Context, kind, title, message string)
}

type Service struct {
	repo     Repository
	notifier Notifier
}

func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

// Create records one review per user and product.
func (s *Service) Create(
	ctx context.Context,
	userID, productID string,
	req CreateReviewRequest,
) (*Review, error) {
	rv := &Review{
		ID:        uuid.New().String(),
		ProductID: productID,
		UserID:    userID,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
	}

	if err := s.repo.Create(ctx, rv); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, notification.TypeNewReview,
			"New review",
			fmt.Sprintf("A product received a %d-star review.", rv.Rating),
		)
	}

	return rv, nil
}

func (s *Service) List(
	ctx context.Context,
	productID string,
	page, pageSize int,
) ([]Review, Summary, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	reviews, err := s.repo.ListForProduct(ctx, productID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, Summary{}, err
	}

	summary, err := s.repo.Summarize(ctx, productID)
	if err != nil {
		return nil, Summary{}, err
	}

	return reviews, summary, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
