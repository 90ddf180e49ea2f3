// AngelaMos | 2026
// handler.go

package access

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/bookshelf/internal/core"
	"github.com/carterperez-dev/bookshelf/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/access", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/books", h.AccessibleBooks)
		r.Get("/books/{bookID}", h.Check)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/access", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/users/{userID}", h.ListForUser)
		r.Get("/books/{bookID}", h.ListForBook)
		r.Put("/users/{userID}/books/{bookID}", h.Grant)
		r.Delete("/users/{userID}/books/{bookID}", h.Revoke)
	})
}

func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Check(
		r.Context(),
		middleware.GetViewer(r.Context()),
		chi.URLParam(r, "bookID"),
	)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToCheckResponse(status))
}

func (h *Handler) AccessibleBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.AccessibleBooks(
		r.Context(),
		middleware.GetViewer(r.Context()),
	)
	if err != nil {
		writeError(w, err, "books")
		return
	}

	core.OK(w, books)
}

func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil &&
		!errors.Is(err, io.EOF) {
		core.BadRequest(w, "invalid request body")
		return
	}

	grant, err := h.service.Grant(
		r.Context(),
		middleware.GetViewer(r.Context()),
		chi.URLParam(r, "userID"),
		chi.URLParam(r, "bookID"),
		req,
	)
	if err != nil {
		writeError(w, err, "user or book")
		return
	}

	core.OK(w, grant)
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	err := h.service.Revoke(
		r.Context(),
		middleware.GetViewer(r.Context()),
		chi.URLParam(r, "userID"),
		chi.URLParam(r, "bookID"),
	)
	if err != nil {
		writeError(w, err, "grant")
		return
	}

	core.NoContent(w)
}

func (h *Handler) ListForUser(w http.ResponseWriter, r *http.Request) {
	grants, err := h.service.ListForUser(
		r.Context(),
		middleware.GetViewer(r.Context()),
		chi.URLParam(r, "userID"),
	)
	if err != nil {
		writeError(w, err, "user")
		return
	}

	core.OK(w, grants)
}

func (h *Handler) ListForBook(w http.ResponseWriter, r *http.Request) {
	grants, err := h.service.ListForBook(
		r.Context(),
		middleware.GetViewer(r.Context()),
		chi.URLParam(r, "bookID"),
	)
	if err != nil {
		writeError(w, err, "book")
		return
	}

	core.OK(w, grants)
}

func writeError(w http.ResponseWriter, err error, resource string) {
	switch {
	case errors.Is(err, ErrInvalidExpiry):
		core.BadRequest(w, ErrInvalidExpiry.Error())
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, resource)
	case errors.Is(err, core.ErrForbidden):
		core.Forbidden(w, "admin access required")
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "")
	default:
		core.InternalServerError(w, err)
	}
}
