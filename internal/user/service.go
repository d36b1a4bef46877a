// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/harvest-table/internal/auth"
	"github.com/carterperez-dev/harvest-table/internal/core"
)

// DeleteHook runs before an account is soft-deleted, while the user row can
// still be updated. Hooks end sessions and drop the saved cart.
type DeleteHook func(ctx context.Context, userID string) error

type Service struct {
	repo  Repository
	hooks []DeleteHook
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) OnDelete(hook DeleteHook) {
	s.hooks = append(s.hooks, hook)
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) Create(
	ctx context.Context,
	email, passwordHash, fullName string,
	verified bool,
) (*auth.UserInfo, error) {
	user := &User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     fullName,
	}
	if verified {
		now := time.Now()
		user.EmailVerifiedAt = &now
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) IncrementTokenVersion(
	ctx context.Context,
	userID string,
) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) MarkVerified(ctx context.Context, userID string) error {
	return s.repo.MarkVerified(ctx, userID)
}

func (s *Service) GetUser(ctx context.Context, id string) (*Listing, error) {
	return s.repo.GetListing(ctx, id)
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]Listing, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// DeleteUser soft-deletes targetID. Admins cannot delete themselves or
// other admins; demote first.
func (s *Service) DeleteUser(ctx context.Context, requesterID, targetID string) error {
	if requesterID == targetID {
		return fmt.Errorf("delete user: cannot delete yourself: %w", core.ErrForbidden)
	}

	target, err := s.repo.GetListing(ctx, targetID)
	if err != nil {
		return err
	}

	if target.Role == "admin" {
		return fmt.Errorf("delete user: cannot delete admin users: %w", core.ErrForbidden)
	}

	for _, hook := range s.hooks {
		if err := hook(ctx, targetID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
	}

	return s.repo.SoftDelete(ctx, targetID)
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:            u.ID,
		Email:         u.Email,
		FullName:      u.FullName,
		PasswordHash:  u.PasswordHash,
		EmailVerified: u.IsVerified(),
		TokenVersion:  u.TokenVersion,
	}
}

var _ auth.UserProvider = (*Service)(nil)
