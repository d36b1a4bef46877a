// AngelaMos | 2026
// handler.go

package order

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

// RegisterRoutes mounts checkout and the customer's order history.
// optionalAuth lets guests check out while still attributing orders to a
// signed-in caller.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, optionalAuth func(http.Handler) http.Handler,
) {
	r.Route("/orders", func(r chi.Router) {
		r.With(optionalAuth).Post("/", h.Checkout)
		r.Get("/track/{code}", h.Track)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/", h.ListMine)
			r.Get("/{orderID}", h.GetMine)
		})
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/orders", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.List)
		r.Get("/{orderID}", h.Get)
		r.Patch("/{orderID}/status", h.UpdateStatus)
	})
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(core.FormatValidationError(err)))
		return
	}

	customer := Customer{}
	if claims := middleware.GetClaims(r.Context()); claims != nil {
		customer = Customer{UserID: claims.UserID, Email: claims.Email}
	}

	o, err := h.service.Checkout(r.Context(), customer, req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToOrderResponse(o))
}

func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" || len(code) > 64 {
		core.NotFound(w, "order")
		return
	}

	o, err := h.service.Track(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToTrackingResponse(o))
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	orders, total, err := h.service.ListForUser(
		r.Context(),
		middleware.GetUserID(r.Context()),
		page,
		pageSize,
	)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	params := ListOrdersParams{Page: page, PageSize: pageSize}
	params.Normalize()
	core.Paginated(w, ToOrderResponseList(orders), params.Page, params.PageSize, total)
}

func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	if !core.ValidID(w, chi.URLParam(r, "orderID"), "order") {
		return
	}

	o, err := h.service.GetForUser(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "orderID"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToOrderResponse(o))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	params := ListOrdersParams{
		Page:     page,
		PageSize: pageSize,
		Status:   r.URL.Query().Get("status"),
		Search:   r.URL.Query().Get("search"),
	}
	params.Normalize()

	if params.Status != "" {
		if _, err := ParseStatus(params.Status); err != nil {
			core.BadRequest(w, "invalid status filter")
			return
		}
	}

	orders, total, err := h.service.List(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToOrderResponseList(orders), params.Page, params.PageSize, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !core.ValidID(w, chi.URLParam(r, "orderID"), "order") {
		return
	}

	o, err := h.service.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToOrderResponse(o))
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !core.ValidID(w, chi.URLParam(r, "orderID"), "order") {
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(core.FormatValidationError(err)))
		return
	}

	o, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToOrderResponse(o))
}

func writeError(w http.ResponseWriter, err error) {
	var (
		missing     *MissingFieldsError
		unavailable *UnavailableError
	)

	switch {
	case errors.As(err, &missing):
		core.JSONError(w, core.ValidationError(missing.Error()))
	case errors.As(err, &unavailable):
		core.JSONError(w, core.NewAppError(
			core.ErrInvalidInput,
			unavailable.Error(),
			http.StatusUnprocessableEntity,
			"PRODUCT_UNAVAILABLE",
		))
	case errors.Is(err, core.ErrEmptyCart):
		core.JSONError(w, core.NewAppError(
			core.ErrEmptyCart,
			"there is nothing to check out",
			http.StatusUnprocessableEntity,
			"EMPTY_CART",
		))
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "order")
	case errors.Is(err, core.ErrConflict):
		core.Conflict(w, "order can no longer be changed")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "invalid order update")
	default:
		core.InternalServerError(w, err)
	}
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}
