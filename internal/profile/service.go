// AngelaMos | 2026
// service.go

package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

// RoleChangeHook runs after a role write commits. Hooks revoke the
// target's sessions so the new role takes effect on their next request.
type RoleChangeHook func(ctx context.Context, userID string) error

type Service struct {
	repo  Repository
	hooks []RoleChangeHook
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) OnRoleChange(hook RoleChangeHook) {
	s.hooks = append(s.hooks, hook)
}

// Get returns the stored profile or core.ErrNotFound when the user has
// never written one.
func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	return s.repo.Get(ctx, userID)
}

func (s *Service) Update(
	ctx context.Context,
	userID string,
	req UpdateProfileRequest,
) (*Profile, error) {
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		p = &Profile{ID: userID, Role: RoleUser}
	}

	req.apply(p)

	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (s *Service) ChangeRole(ctx context.Context, actorID, userID, role string) error {
	parsed, err := ParseRole(role)
	if err != nil {
		return err
	}

	if actorID == userID && !parsed.IsAdmin() {
		return fmt.Errorf("change role: self demotion: %w", core.ErrForbidden)
	}

	if err := s.repo.SetRole(ctx, userID, parsed); err != nil {
		return err
	}

	slog.Info("user role changed",
		"actor_id", actorID,
		"user_id", userID,
		"role", parsed,
	)

	for _, hook := range s.hooks {
		if err := hook(ctx, userID); err != nil {
			return fmt.Errorf("role change hook: %w", err)
		}
	}

	return nil
}

// IsAdmin implements middleware.RoleResolver from the stored profile.
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	role, err := s.repo.RoleOf(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return role.IsAdmin(), nil
}

func (s *Service) RoleOf(ctx context.Context, userID string) (string, error) {
	role, err := s.repo.RoleOf(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return RoleUser.String(), nil
		}
		return "", err
	}

	return role.String(), nil
}

func (s *Service) PhoneOf(ctx context.Context, userID string) (string, error) {
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", nil
		}
		return "", err
	}

	return p.Phone, nil
}
