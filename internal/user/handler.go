// AngelaMos | 2026
// handler.go

package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

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

// RegisterRoutes mounts the self-service profile endpoints.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/users/me", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.GetMe)
		r.Put("/", h.UpdateMe)
		r.Delete("/", h.DeleteMe)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/users", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.ListUsers)
		r.Post("/", h.CreateUser)
		r.Get("/{userID}", h.GetUser)
		r.Put("/{userID}", h.UpdateUser)
		r.Put("/{userID}/role", h.UpdateUserRole)
		r.Delete("/{userID}", h.DeleteUser)
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
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
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	case errors.Is(err, ErrEmailTaken):
		core.JSONError(w, core.DuplicateError("email"))
	case errors.Is(err, core.ErrForbidden):
		core.Forbidden(w, "insufficient permissions")
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "")
	default:
		core.InternalServerError(w, err)
	}
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetMe(r.Context(), middleware.GetViewer(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	core.OK(w, ToUserResponse(u))
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.service.UpdateMe(r.Context(), middleware.GetViewer(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}
	core.OK(w, ToUserResponse(u))
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMe(r.Context(), middleware.GetViewer(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	core.NoContent(w)
}

// ListUsers supports ?search= over email and name and ?role=.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := ListUsersParams{
		Page:     core.QueryInt(r, "page", 1),
		PageSize: core.QueryInt(r, "page_size", 20),
		Search:   q.Get("search"),
		Role:     q.Get("role"),
	}
	params.Normalize()

	users, total, err := h.service.ListUsers(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Paginated(w, ToUserResponseList(users), params.Page, params.PageSize, total)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.service.CreateUser(r.Context(), middleware.GetViewer(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}
	core.Created(w, ToUserResponse(u))
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	core.OK(w, ToUserResponse(u))
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.service.UpdateUser(r.Context(), chi.URLParam(r, "userID"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	core.OK(w, ToUserResponse(u))
}

func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRoleRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.service.UpdateUserRole(r.Context(), chi.URLParam(r, "userID"), req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	core.OK(w, ToUserResponse(u))
}

// DeleteUser soft deletes an account. Admins cannot remove other admins.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "userID")

	if err := h.service.CanDeleteUser(r.Context(), middleware.GetViewer(r.Context()), targetID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.service.DeleteUser(r.Context(), targetID); err != nil {
		writeError(w, err)
		return
	}
	core.NoContent(w)
}
