// AngelaMos | 2026
// library.go

// Package library assembles a signed-in user's shelf: profile, the books
// they can open, their reading progress and the category list.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/bookshelf/internal/access"
	"github.com/carterperez-dev/bookshelf/internal/category"
	"github.com/carterperez-dev/bookshelf/internal/core"
	"github.com/carterperez-dev/bookshelf/internal/middleware"
	"github.com/carterperez-dev/bookshelf/internal/progress"
	"github.com/carterperez-dev/bookshelf/internal/user"
)

type ProfileSource interface {
	GetProfile(ctx context.Context, id string) (*user.Profile, error)
}

type ShelfSource interface {
	AccessibleBooks(ctx context.Context, viewer core.Viewer) ([]access.AccessibleBook, error)
}

type ProgressSource interface {
	ByBook(ctx context.Context, userID string) (map[string]progress.Progress, error)
}

type CategorySource interface {
	List(ctx context.Context) ([]category.Category, error)
}

type CoverSigner interface {
	SignCover(ctx context.Context, key string) string
}

type Item struct {
	access.AccessibleBook
	CoverURL string             `json:"cover_url,omitempty"`
	Progress *progress.Progress `json:"progress"`
}

type Summary struct {
	Accessible int `json:"accessible"`
	Started    int `json:"started"`
	Completed  int `json:"completed"`
}

type View struct {
	Profile    *user.Profile       `json:"profile"`
	Books      []Item              `json:"books"`
	Categories []category.Category `json:"categories"`
	Summary    Summary             `json:"summary"`
}

type Service struct {
	profiles   ProfileSource
	shelf      ShelfSource
	progress   ProgressSource
	categories CategorySource
	covers     CoverSigner
	logger     *slog.Logger
}

func NewService(
	profiles ProfileSource,
	shelf ShelfSource,
	progressSource ProgressSource,
	categories CategorySource,
	covers CoverSigner,
	logger *slog.Logger,
) *Service {
	return &Service{
		profiles:   profiles,
		shelf:      shelf,
		progress:   progressSource,
		categories: categories,
		covers:     covers,
		logger:     logger,
	}
}

// Load fetches the four parts concurrently. The first failure cancels the
// rest, as does the caller going away.
func (s *Service) Load(ctx context.Context, viewer core.Viewer) (*View, error) {
	if viewer.IsAnonymous() {
		return nil, fmt.Errorf("load library: %w", core.ErrUnauthorized)
	}

	var (
		profile    *user.Profile
		books      []access.AccessibleBook
		byBook     map[string]progress.Progress
		categories []category.Category
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		profile, err = s.profiles.GetProfile(gctx, viewer.UserID)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		books, err = s.shelf.AccessibleBooks(gctx, viewer)
		if err != nil {
			return fmt.Errorf("load accessible books: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		byBook, err = s.progress.ByBook(gctx, viewer.UserID)
		if err != nil {
			return fmt.Errorf("load progress: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		categories, err = s.categories.List(gctx)
		if err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := &View{
		Profile:    profile,
		Books:      make([]Item, 0, len(books)),
		Categories: categories,
	}

	for _, b := range books {
		item := Item{
			AccessibleBook: b,
			CoverURL:       s.covers.SignCover(ctx, b.CoverPath),
		}
		if p, ok := byBook[b.BookID]; ok {
			item.Progress = &p
			view.Summary.Started++
			if p.Completed() {
				view.Summary.Completed++
			}
		}
		view.Books = append(view.Books, item)
	}
	view.Summary.Accessible = len(view.Books)

	return view, nil
}

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
	r.With(authenticator).Get("/library", h.Get)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Load(r.Context(), middleware.GetViewer(r.Context()))
	if err != nil {
		if r.Context().Err() != nil {
			h.service.logger.Debug("library request abandoned", "error", err)
			return
		}
		switch {
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "profile")
		case errors.Is(err, core.ErrUnauthorized):
			core.Unauthorized(w, "")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, view)
}
