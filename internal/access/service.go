// AngelaMos | 2026
// service.go

package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/bookshelf/internal/core"
)

var ErrInvalidExpiry = errors.New("expiry must be in the future")

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock replaces the time source used to evaluate expiry.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Check reports whether viewer may open bookID. Admins always may. Expiry is
// compared against the clock on every call; lapsed rows are never removed.
func (s *Service) Check(
	ctx context.Context,
	viewer core.Viewer,
	bookID string,
) (Status, error) {
	if viewer.IsAdmin() {
		return StatusGranted, nil
	}
	if viewer.IsAnonymous() || !validIDs(bookID) {
		return StatusNone, nil
	}

	grant, err := s.repo.Get(ctx, viewer.UserID, bookID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return StatusNone, nil
		}
		return "", fmt.Errorf("check access: %w", err)
	}

	return grant.StatusAt(s.now()), nil
}

func (s *Service) Grant(
	ctx context.Context,
	viewer core.Viewer,
	userID, bookID string,
	req GrantRequest,
) (*Grant, error) {
	if !viewer.IsAdmin() {
		return nil, fmt.Errorf("grant access: %w", core.ErrForbidden)
	}
	if !validIDs(userID, bookID) {
		return nil, fmt.Errorf("grant access: %w", core.ErrNotFound)
	}

	now := s.now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, fmt.Errorf("grant access: %w", ErrInvalidExpiry)
	}

	grantedBy := viewer.UserID
	grant := &Grant{
		UserID:    userID,
		BookID:    bookID,
		GrantedAt: now,
		GrantedBy: &grantedBy,
		ExpiresAt: req.ExpiresAt,
	}

	if err := s.repo.Upsert(ctx, grant); err != nil {
		return nil, err
	}

	return grant, nil
}

func (s *Service) Revoke(
	ctx context.Context,
	viewer core.Viewer,
	userID, bookID string,
) error {
	if !viewer.IsAdmin() {
		return fmt.Errorf("revoke access: %w", core.ErrForbidden)
	}
	if !validIDs(userID, bookID) {
		return fmt.Errorf("revoke access: %w", core.ErrNotFound)
	}

	return s.repo.Delete(ctx, userID, bookID)
}

func (s *Service) ListForUser(
	ctx context.Context,
	viewer core.Viewer,
	userID string,
) ([]GrantWithBook, error) {
	if !viewer.IsAdmin() && viewer.UserID != userID {
		return nil, fmt.Errorf("list grants: %w", core.ErrForbidden)
	}
	if !validIDs(userID) {
		return nil, fmt.Errorf("list grants: %w", core.ErrNotFound)
	}

	return s.repo.ListForUser(ctx, userID)
}

func (s *Service) ListForBook(
	ctx context.Context,
	viewer core.Viewer,
	bookID string,
) ([]GrantWithUser, error) {
	if !viewer.IsAdmin() {
		return nil, fmt.Errorf("list grants: %w", core.ErrForbidden)
	}
	if !validIDs(bookID) {
		return nil, fmt.Errorf("list grants: %w", core.ErrNotFound)
	}

	return s.repo.ListForBook(ctx, bookID)
}

// AccessibleBooks lists the books viewer holds a live grant for.
func (s *Service) AccessibleBooks(
	ctx context.Context,
	viewer core.Viewer,
) ([]AccessibleBook, error) {
	if viewer.IsAnonymous() {
		return nil, fmt.Errorf("accessible books: %w", core.ErrUnauthorized)
	}

	return s.repo.ListActiveBooks(ctx, viewer.UserID, s.now())
}

type Counts struct {
	Active  int `json:"active"`
	Expired int `json:"expired"`
}

func (s *Service) Counts(ctx context.Context) (Counts, error) {
	active, expired, err := s.repo.Count(ctx, s.now())
	if err != nil {
		return Counts{}, err
	}
	return Counts{Active: active, Expired: expired}, nil
}

// validIDs reports whether every id is a UUID. Anything else cannot match a
// row and would only make postgres reject the query.
func validIDs(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}
