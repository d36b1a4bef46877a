// AngelaMos | 2026
// service.go

package cart

import (
	"context"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, userID string) ([]Line, error) {
	return s.repo.List(ctx, userID)
}

// Add merges into an existing line for the same product and returns the
// refreshed cart.
func (s *Service) Add(ctx context.Context, userID string, req AddItemRequest) ([]Line, error) {
	qty := req.Quantity
	if qty < 1 {
		qty = 1
	}

	if err := s.repo.Add(ctx, userID, req.ProductID, qty); err != nil {
		return nil, err
	}

	return s.repo.List(ctx, userID)
}

// UpdateQuantity ignores quantities below one; removal is explicit.
func (s *Service) UpdateQuantity(
	ctx context.Context,
	userID, itemID string,
	quantity int,
) ([]Line, error) {
	if quantity >= 1 {
		if err := s.repo.UpdateQuantity(ctx, userID, itemID, quantity); err != nil {
			return nil, err
		}
	}

	return s.repo.List(ctx, userID)
}

func (s *Service) Remove(ctx context.Context, userID, itemID string) ([]Line, error) {
	if err := s.repo.Remove(ctx, userID, itemID); err != nil {
		return nil, err
	}

	return s.repo.List(ctx, userID)
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.repo.Clear(ctx, userID)
}
