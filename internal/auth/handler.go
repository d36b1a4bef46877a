// AngelaMos | 2026
// handler.go

package auth

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

// Limits groups the per-endpoint throttles applied to credential routes.
type Limits struct {
	Login         func(http.Handler) http.Handler
	PasswordReset func(http.Handler) http.Handler
}

func passthrough(next http.Handler) http.Handler { return next }

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	limits Limits,
) {
	if limits.Login == nil {
		limits.Login = passthrough
	}
	if limits.PasswordReset == nil {
		limits.PasswordReset = passthrough
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(limits.Login).Post("/login", h.Login)
		r.With(limits.Login).Post("/register", h.Register)
		r.Post("/refresh", h.Refresh)
		r.Get("/verify", h.VerifyEmail)
		r.With(limits.PasswordReset).Post("/verify/resend", h.ResendVerification)
		r.With(limits.PasswordReset).Post("/password-reset/request", h.RequestPasswordReset)
		r.With(limits.PasswordReset).Post("/password-reset", h.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/me", h.GetMe)
			r.Post("/logout", h.Logout)
			r.Post("/logout-all", h.LogoutAll)
			r.Get("/sessions", h.GetSessions)
			r.Delete("/sessions/{sessionID}", h.RevokeSession)
			r.Post("/change-password", h.ChangePassword)
		})
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.JSONError(w, core.ValidationError(core.FormatValidationError(err)))
		return false
	}

	return true
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req, r.UserAgent(), middleware.ClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			core.JSONError(w, core.UnauthorizedError("invalid email or password"))
		case errors.Is(err, ErrEmailNotVerified):
			core.JSONError(w, core.NewAppError(
				core.ErrForbidden,
				"email address has not been verified",
				http.StatusForbidden,
				"EMAIL_NOT_VERIFIED",
			))
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req, r.UserAgent(), middleware.ClientIP(r))
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			core.JSONError(w, core.DuplicateError("email"))
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" || len(token) > 256 {
		core.BadRequest(w, "verification token required")
		return
	}

	if err := h.service.VerifyEmail(r.Context(), token); err != nil {
		if errors.Is(err, ErrInvalidVerifyToken) {
			core.BadRequest(w, "verification link is invalid or has expired")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ResendVerification(r.Context(), req.Email); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.JSON(w, http.StatusAccepted, core.Response{Success: true})
}

func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.JSON(w, http.StatusAccepted, core.Response{Success: true})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		if errors.Is(err, ErrInvalidResetCode) {
			core.BadRequest(w, "reset code is invalid or has expired")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Refresh(
		r.Context(),
		req.RefreshToken,
		r.UserAgent(),
		middleware.ClientIP(r),
	)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenReuse):
			core.JSONError(w, core.NewAppError(
				core.ErrTokenRevoked,
				"security alert: token reuse detected, all sessions revoked",
				http.StatusUnauthorized,
				"TOKEN_REUSE_DETECTED",
			))
		case errors.Is(err, core.ErrTokenExpired):
			core.JSONError(w, core.TokenExpiredError())
		case errors.Is(err, core.ErrTokenRevoked):
			core.JSONError(w, core.TokenRevokedError())
		case errors.Is(err, core.ErrTokenInvalid):
			core.JSONError(w, core.TokenInvalidError())
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		core.Unauthorized(w, "")
		return
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			core.BadRequest(w, "invalid request body")
			return
		}
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken, claims); err != nil {
		if errors.Is(err, core.ErrForbidden) {
			core.Forbidden(w, "cannot revoke another user's token")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	if err := h.service.LogoutAll(r.Context(), userID); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	sessions, err := h.service.GetActiveSessions(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, SessionsResponse{Sessions: sessions})
}

func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if !core.ValidID(w, sessionID, "session") {
		return
	}

	if err := h.service.RevokeSession(r.Context(), userID, sessionID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "session")
			return
		}
		if errors.Is(err, core.ErrForbidden) {
			core.Forbidden(w, "cannot revoke another user's session")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	var req ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			core.JSONError(
				w,
				core.UnauthorizedError("current password is incorrect"),
			)
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, user)
}
