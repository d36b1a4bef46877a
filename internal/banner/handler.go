// AngelaMos | 2026
// handler.go

package banner

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/harvest-table/internal/core"
	"github.com/carterperez-dev/harvest-table/internal/storage"
)

type FormImageReader interface {
	FormImage(w http.ResponseWriter, r *http.Request, field string) (io.ReadCloser, error)
}

type Handler struct {
	service   *Service
	uploads   FormImageReader
	validator *validator.Validate
}

func NewHandler(service *Service, uploads FormImageReader) *Handler {
	return &Handler{
		service:   service,
		uploads:   uploads,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router, cache func(http.Handler) http.Handler) {
	r.With(cache).Get("/banners/active", h.Active)
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/banners", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Put("/{bannerID}", h.Update)
		r.Delete("/{bannerID}", h.Delete)
		r.Post("/{bannerID}/image", h.UploadImage)
	})
}

func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	banners, err := h.service.Active(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToBannerResponseList(banners))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	banners, err := h.service.List(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToBannerResponseList(banners))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBannerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(core.FormatValidationError(err)))
		return
	}

	b, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToBannerResponse(b))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if !core.ValidID(w, chi.URLParam(r, "bannerID"), "banner") {
		return
	}

	var req UpdateBannerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(core.FormatValidationError(err)))
		return
	}

	b, err := h.service.Update(r.Context(), chi.URLParam(r, "bannerID"), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToBannerResponse(b))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !core.ValidID(w, chi.URLParam(r, "bannerID"), "banner") {
		return
	}

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "bannerID")); err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if !core.ValidID(w, chi.URLParam(r, "bannerID"), "banner") {
		return
	}

	file, err := h.uploads.FormImage(w, r, "image")
	if err != nil {
		writeError(w, err)
		return
	}
	defer file.Close()

	b, err := h.service.SetImage(r.Context(), chi.URLParam(r, "bannerID"), file)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToBannerResponse(b))
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "banner")
	case errors.Is(err, storage.ErrTooLarge):
		core.JSONError(w, core.NewAppError(err, "image is too large",
			http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"))
	case errors.Is(err, storage.ErrUnsupportedType):
		core.BadRequest(w, "image must be JPEG, PNG, GIF or WebP")
	default:
		core.InternalServerError(w, err)
	}
}
