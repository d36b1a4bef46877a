// AngelaMos | 2026
// service.go

package banner

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
)

const CacheNamespace = "banners"

type ImageStore interface {
	UploadImage(ctx context.Context, folder string, src io.Reader) (string, error)
	Delete(ctx context.Context, publicURL string) error
}

type CacheInvalidator interface {
	InvalidateCache(ctx context.Context, namespace string)
}

type Service struct {
	repo   Repository
	images ImageStore
	cache  CacheInvalidator
}

func NewService(repo Repository, images ImageStore, cache CacheInvalidator) *Service {
	return &Service{repo: repo, images: images, cache: cache}
}

func (s *Service) Active(ctx context.Context) ([]Banner, error) {
	return s.repo.List(ctx, true)
}

func (s *Service) List(ctx context.Context) ([]Banner, error) {
	return s.repo.List(ctx, false)
}

func (s *Service) Create(ctx context.Context, req CreateBannerRequest) (*Banner, error) {
	b := &Banner{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Subtitle:  req.Subtitle,
		ImageURL:  req.ImageURL,
		LinkURL:   req.LinkURL,
		IsActive:  req.IsActive,
		SortOrder: req.SortOrder,
	}

	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return b, nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateBannerRequest) (*Banner, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	req.apply(b)

	if err := s.repo.Update(ctx, b); err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return b, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.removeImage(ctx, b.ImageURL)
	s.invalidate(ctx)
	return nil
}

func (s *Service) SetImage(ctx context.Context, id string, src io.Reader) (*Banner, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := s.images.UploadImage(ctx, "banners", src)
	if err != nil {
		return nil, err
	}

	previous := b.ImageURL
	b.ImageURL = url

	if err := s.repo.Update(ctx, b); err != nil {
		s.removeImage(ctx, url)
		return nil, err
	}

	s.removeImage(ctx, previous)
	s.invalidate(ctx)
	return b, nil
}

func (s *Service) removeImage(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.images.Delete(ctx, url); err != nil {
		slog.Warn("banner image cleanup failed", "url", url, "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateCache(ctx, CacheNamespace)
	}
}
