// AngelaMos | 2026
// service.go

package product

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

// CacheNamespace keys the public catalog responses in the response cache.
const CacheNamespace = "products"

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

func (s *Service) List(
	ctx context.Context,
	params ListProductsParams,
) ([]Product, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) Get(ctx context.Context, id string, includeInactive bool) (*Product, error) {
	return s.repo.GetByID(ctx, id, includeInactive)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) Create(ctx context.Context, req CreateProductRequest) (*Product, error) {
	if err := req.checkPrice(); err != nil {
		return nil, err
	}

	p := &Product{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
		IsActive:    true,
		IsFeatured:  req.IsFeatured,
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return p, nil
}

func (s *Service) Update(
	ctx context.Context,
	id string,
	req UpdateProductRequest,
) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id, true)
	if err != nil {
		return nil, err
	}

	if err := req.apply(p); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.repo.GetByID(ctx, id, true)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if p.ImageURL != "" {
		if err := s.images.Delete(ctx, p.ImageURL); err != nil {
			slog.Warn("product image cleanup failed",
				"product_id", id,
				"error", err,
			)
		}
	}

	s.invalidate(ctx)
	return nil
}

// SetImage stores a new image and points the product at it, removing the
// previous file.
func (s *Service) SetImage(ctx context.Context, id string, src io.Reader) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id, true)
	if err != nil {
		return nil, err
	}

	url, err := s.images.UploadImage(ctx, "products", src)
	if err != nil {
		return nil, err
	}

	previous := p.ImageURL
	p.ImageURL = url

	if err := s.repo.Update(ctx, p); err != nil {
		//nolint:errcheck // orphan cleanup
		_ = s.images.Delete(ctx, url)
		return nil, err
	}

	if previous != "" {
		if err := s.images.Delete(ctx, previous); err != nil {
			slog.Warn("previous product image cleanup failed",
				"product_id", id,
				"error", err,
			)
		}
	}

	s.invalidate(ctx)
	return p, nil
}

func (s *Service) Export(ctx context.Context, w io.Writer) error {
	products, err := s.repo.ListAll(ctx)
	if err != nil {
		return err
	}

	return writeWorkbook(w, products)
}

// Import applies workbook rows: rows with a known ID update that product,
// rows without an ID create one, unparseable rows are skipped.
func (s *Service) Import(ctx context.Context, r io.ReaderAt, size int64) (*ImportResult, error) {
	rows, skipped, err := readWorkbook(r, size)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Skipped: skipped}

	for _, row := range rows {
		if row.ID != "" {
			existing, err := s.repo.GetByID(ctx, row.ID, true)
			if err == nil {
				row.CreatedAt = existing.CreatedAt
				if err := s.repo.Update(ctx, &row); err != nil {
					return nil, err
				}
				result.Updated++
				continue
			}
			if !errors.Is(err, core.ErrNotFound) {
				return nil, err
			}
		} else {
			row.ID = uuid.New().String()
		}

		if err := s.repo.Create(ctx, &row); err != nil {
			if errors.Is(err, core.ErrDuplicateKey) {
				result.Skipped++
				continue
			}
			return nil, fmt.Errorf("import row %q: %w", row.Name, err)
		}
		result.Created++
	}

	s.invalidate(ctx)
	return result, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateCache(ctx, CacheNamespace)
	}
}
