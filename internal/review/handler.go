// AngelaMos | 2026
// handler.go

package review

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/harvest-table/internal/core"
	"github.com/carterperez-dev/harvest-table/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ProductRoutes returns the routes mounted under /products/{productID}.
func (h *Handler) ProductRoutes(
	authenticator, submitLimit func(http.Handler) http.Handler,
) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/reviews", h.List)
		r.With(authenticator, submitLimit).Post("/reviews", h.Create)
	}
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/reviews", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Delete("/{reviewID}", h.Delete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !core.ValidID(w, chi.URLParam(r, "productID"), "product") {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	reviews, summary, err := h.service.List(
		r.Context(),
		chi.URLParam(r, "productID"),
		page,
		pageSize,
	)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	out := make([]ReviewResponse, 0, len(reviews))
	for i := range reviews {
		out = append(out, ToReviewResponse(&reviews[i]))
	}

	core.OK(w, ListResponse{Reviews: out, Summary: summary})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !core.ValidID(w, chi.URLParam(r, "productID"), "product") {
		return
	}

	var req CreateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(core.FormatValidationError(err)))
		return
	}

	rv, err := h.service.Create(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "productID"),
		req,
	)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "product")
		case errors.Is(err, core.ErrDuplicateKey):
			core.Conflict(w, "you have already reviewed this product")
		case errors.Is(err, core.ErrInvalidInput):
			core.BadRequest(w, "rating must be between 1 and 5")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.Created(w, ToReviewResponse(rv))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !core.ValidID(w, chi.URLParam(r, "reviewID"), "review") {
		return
	}

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "reviewID")); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "review")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}
