// AngelaMos | 2026
// handler.go

package notification

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/harvest-table/internal/core"
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

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/notifications", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.List)
		r.Post("/", h.Send)
		r.Post("/{notificationID}/read", h.MarkRead)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"

	items, total, err := h.service.List(r.Context(), unreadOnly, page, pageSize)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, items, page, pageSize, total)
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(core.FormatValidationError(err)))
		return
	}

	n, err := h.service.Send(r.Context(), req)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Created(w, n)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if !core.ValidID(w, chi.URLParam(r, "notificationID"), "notification") {
		return
	}

	if err := h.service.MarkRead(r.Context(), chi.URLParam(r, "notificationID")); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "notification")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}
