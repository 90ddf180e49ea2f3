// AngelaMos | 2026
// handler.go

package category

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/bookshelf/internal/core"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the public category endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/counts", h.Counts)
		r.Get("/{categoryID}", h.Get)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.List(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, categories)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), chi.URLParam(r, "categoryID"))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "category")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, c)
}

func (h *Handler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.Counts(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, counts)
}
