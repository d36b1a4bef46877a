// AngelaMos | 2026
// handler.go

package cart

import (
	"encoding/json"
	"errors"
	"net/http"

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

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/cart", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.Get)
		r.Delete("/", h.Clear)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{itemID}", h.UpdateItem)
		r.Delete("/items/{itemID}", h.RemoveItem)
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	lines, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToCartResponse(lines))
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(core.FormatValidationError(err)))
		return
	}

	lines, err := h.service.Add(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		writeError(w, err, "product")
		return
	}

	core.OK(w, ToCartResponse(lines))
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if !core.ValidID(w, chi.URLParam(r, "itemID"), "cart item") {
		return
	}

	var req UpdateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(core.FormatValidationError(err)))
		return
	}

	lines, err := h.service.UpdateQuantity(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "itemID"),
		req.Quantity,
	)
	if err != nil {
		writeError(w, err, "cart item")
		return
	}

	core.OK(w, ToCartResponse(lines))
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if !core.ValidID(w, chi.URLParam(r, "itemID"), "cart item") {
		return
	}

	lines, err := h.service.Remove(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "itemID"),
	)
	if err != nil {
		writeError(w, err, "cart item")
		return
	}

	core.OK(w, ToCartResponse(lines))
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func writeError(w http.ResponseWriter, err error, resource string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, resource)
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "invalid quantity")
	default:
		core.InternalServerError(w, err)
	}
}
