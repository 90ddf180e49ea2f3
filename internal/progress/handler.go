// AngelaMos | 2026
// handler.go

package progress

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

// RegisterRoutes mounts /progress. Saves pass through limiter, which is
// expected to key on the authenticated user.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, limiter func(http.Handler) http.Handler,
) {
	r.Route("/progress", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Get("/recent", h.Recent)
		r.Get("/stats", h.Stats)
		r.Get("/{bookID}", h.Get)
		r.With(limiter).Put("/{bookID}", h.Save)
		r.Delete("/{bookID}", h.Delete)
	})
}

func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	p, err := h.service.Save(
		r.Context(),
		middleware.GetViewer(r.Context()),
		chi.URLParam(r, "bookID"),
		req,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, p)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(
		r.Context(),
		middleware.GetViewer(r.Context()),
		chi.URLParam(r, "bookID"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, p)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.List(r.Context(), middleware.GetViewer(r.Context()))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, rows)
}

func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Recent(
		r.Context(),
		middleware.GetViewer(r.Context()),
		core.QueryInt(r, "limit", defaultRecentLimit),
	)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, rows)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(
		r.Context(),
		middleware.GetViewer(r.Context()),
		chi.URLParam(r, "bookID"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), middleware.GetViewer(r.Context()))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, stats)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "progress")
	case errors.Is(err, ErrNoAccess):
		core.JSONError(w, core.NewAppError(
			err, err.Error(), http.StatusForbidden, "ACCESS_DENIED",
		))
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "")
	default:
		core.InternalServerError(w, err)
	}
}
