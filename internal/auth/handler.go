// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/carterperez-dev/bookshelf/internal/core"
	"github.com/carterperez-dev/bookshelf/internal/middleware"
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
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.Post("/refresh", h.Refresh)

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

// bind decodes and validates a JSON body, writing the 400 itself on
// failure.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenReuse):
		core.JSONError(w, core.NewAppError(
			core.ErrTokenRevoked,
			"refresh token reuse detected, all sessions in this family were revoked",
			http.StatusUnauthorized,
			"TOKEN_REUSE_DETECTED",
		))
	case errors.Is(err, ErrEmailExists):
		core.JSONError(w, core.DuplicateError("email"))
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenRevoked):
		core.JSONError(w, core.TokenRevokedError())
	case errors.Is(err, core.ErrTokenInvalid):
		core.JSONError(w, core.TokenInvalidError())
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "session")
	case errors.Is(err, core.ErrForbidden):
		core.Forbidden(w, "session belongs to another user")
	default:
		core.InternalServerError(w, err)
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.bind(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req, r.UserAgent(), middleware.ClientIP(r))
	if errors.Is(err, ErrInvalidCredentials) {
		core.JSONError(w, core.UnauthorizedError("invalid email or password"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.bind(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req, r.UserAgent(), middleware.ClientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.bind(w, r, &req) {
		return
	}

	resp, err := h.service.Refresh(r.Context(), req.RefreshToken, r.UserAgent(), middleware.ClientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, resp)
}

// Logout accepts an empty body; the refresh token is optional.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		core.Unauthorized(w, "")
		return
	}

	var req LogoutRequest
	if r.ContentLength != 0 && !h.bind(w, r, &req) {
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken, claims); err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.GetViewer(r.Context())
	if viewer.IsAnonymous() {
		core.Unauthorized(w, "")
		return
	}

	if err := h.service.LogoutAll(r.Context(), viewer.UserID); err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		core.Unauthorized(w, "")
		return
	}

	sessions, err := h.service.GetActiveSessions(r.Context(), claims.UserID, claims.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, SessionsResponse{Sessions: sessions})
}

func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.GetViewer(r.Context())
	if viewer.IsAnonymous() {
		core.Unauthorized(w, "")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if _, err := uuid.Parse(sessionID); err != nil {
		core.NotFound(w, "session")
		return
	}

	if err := h.service.RevokeSession(r.Context(), viewer.UserID, sessionID); err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.GetViewer(r.Context())
	if viewer.IsAnonymous() {
		core.Unauthorized(w, "")
		return
	}

	var req ChangePasswordRequest
	if !h.bind(w, r, &req) {
		return
	}

	err := h.service.ChangePassword(r.Context(), viewer.UserID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, ErrInvalidCredentials) {
		core.JSONError(w, core.UnauthorizedError("current password is incorrect"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.GetViewer(r.Context())
	if viewer.IsAnonymous() {
		core.Unauthorized(w, "")
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), viewer.UserID)
	if errors.Is(err, core.ErrNotFound) {
		core.NotFound(w, "user")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, user)
}
