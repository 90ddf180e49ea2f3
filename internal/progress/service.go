// AngelaMos | 2026
// service.go

package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/bookshelf/internal/access"
	"github.com/carterperez-dev/bookshelf/internal/core"
)

var ErrNoAccess = errors.New("no active access to this book")

type AccessChecker interface {
	Check(
		ctx context.Context,
		viewer core.Viewer,
		bookID string,
	) (access.Status, error)
}

type Service struct {
	repo   Repository
	access AccessChecker
	now    func() time.Time
}

func NewService(repo Repository, accessChecker AccessChecker) *Service {
	return &Service{
		repo:   repo,
		access: accessChecker,
		now:    time.Now,
	}
}

// Save records the page the viewer is on. The total comes from the request,
// else from the book; with neither, the previous percent is kept.
// Concurrent saves for the same pair are last-write-wins.
func (s *Service) Save(
	ctx context.Context,
	viewer core.Viewer,
	bookID string,
	req SaveRequest,
) (*Progress, error) {
	if viewer.IsAnonymous() {
		return nil, fmt.Errorf("save progress: %w", core.ErrUnauthorized)
	}
	if err := checkBookID(bookID); err != nil {
		return nil, err
	}

	status, err := s.access.Check(ctx, viewer, bookID)
	if err != nil {
		return nil, fmt.Errorf("save progress: %w", err)
	}
	if status != access.StatusGranted {
		return nil, ErrNoAccess
	}

	total := 0
	if req.TotalPages != nil {
		total = *req.TotalPages
	} else {
		total, err = s.repo.BookPages(ctx, bookID)
		if err != nil {
			return nil, err
		}
	}

	p := &Progress{
		UserID:      viewer.UserID,
		BookID:      bookID,
		CurrentPage: req.CurrentPage,
		LastReadAt:  s.now().UTC(),
	}

	percent, known := Percent(req.CurrentPage, total)
	if known {
		p.TotalPages = &total
		p.Percent = percent
	}

	if err := s.repo.Upsert(ctx, p, known); err != nil {
		return nil, err
	}

	return p, nil
}

func (s *Service) Get(ctx context.Context, viewer core.Viewer, bookID string) (*Progress, error) {
	if err := checkBookID(bookID); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, viewer.UserID, bookID)
}

func (s *Service) List(ctx context.Context, viewer core.Viewer) ([]WithBook, error) {
	return s.repo.List(ctx, viewer.UserID, 0)
}

func (s *Service) Recent(ctx context.Context, viewer core.Viewer, limit int) ([]WithBook, error) {
	if limit < 1 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	return s.repo.List(ctx, viewer.UserID, limit)
}

func (s *Service) Delete(ctx context.Context, viewer core.Viewer, bookID string) error {
	if err := checkBookID(bookID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, viewer.UserID, bookID)
}

func (s *Service) Stats(ctx context.Context, viewer core.Viewer) (*Stats, error) {
	return s.repo.Stats(ctx, viewer.UserID)
}

// ByBook indexes the viewer's rows for merging into book listings.
func (s *Service) ByBook(ctx context.Context, userID string) (map[string]Progress, error) {
	rows, err := s.repo.List(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Progress, len(rows))
	for _, row := range rows {
		out[row.BookID] = row.Progress
	}
	return out, nil
}

func checkBookID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("book %q: %w", id, core.ErrNotFound)
	}
	return nil
}
