// AngelaMos | 2026
// handler.go

package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/harvest-table/internal/core"
	"github.com/carterperez-dev/harvest-table/internal/middleware"
)

// RoleChanger writes the role onto the target's profile.
type RoleChanger interface {
	ChangeRole(ctx context.Context, actorID, userID, role string) error
}

type Handler struct {
	service   *Service
	roles     RoleChanger
	validator *validator.Validate
}

func NewHandler(service *Service, roles RoleChanger) *Handler {
	return &Handler{
		service:   service,
		roles:     roles,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterAdminRoutes registers admin-only user management endpoints.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/users", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.ListUsers)
		r.Get("/{userID}", h.GetUser)
		r.Put("/{userID}/role", h.UpdateUserRole)
		r.Delete("/{userID}", h.DeleteUser)
	})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	params := listParams(r)

	users, total, err := h.service.ListUsers(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToUserResponseList(users), params.Page, params.PageSize, total)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	h.respondWithUser(w, r, id)
}

// UpdateUserRole writes the role through the profile service so the
// target's sessions are revoked along with the change.
func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	var req UpdateUserRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(core.FormatValidationError(err)))
		return
	}

	err := h.roles.ChangeRole(r.Context(), middleware.GetUserID(r.Context()), id, req.Role)
	if err != nil {
		writeError(w, err, "administrators cannot demote themselves")
		return
	}

	h.respondWithUser(w, r, id)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		writeError(w, err, "this user cannot be deleted")
		return
	}

	core.NoContent(w)
}

func (h *Handler) respondWithUser(w http.ResponseWriter, r *http.Request, id string) {
	listing, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, err, "")
		return
	}

	core.OK(w, ToUserResponse(listing))
}

func targetID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "userID")
	return id, core.ValidID(w, id, "user")
}

func writeError(w http.ResponseWriter, err error, forbidden string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	case errors.Is(err, core.ErrForbidden):
		core.Forbidden(w, forbidden)
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "invalid role")
	default:
		core.InternalServerError(w, err)
	}
}

func listParams(r *http.Request) ListUsersParams {
	q := r.URL.Query()

	atoi := func(key string) int {
		n, _ := strconv.Atoi(q.Get(key))
		return n
	}

	p := ListUsersParams{
		Page:     atoi("page"),
		PageSize: atoi("page_size"),
		Search:   strings.TrimSpace(q.Get("search")),
		Role:     q.Get("role"),
	}
	p.Normalize()
	return p
}
