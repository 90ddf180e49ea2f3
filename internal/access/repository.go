// AngelaMos | 2026
// repository.go

package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/bookshelf/internal/core"
)

type Repository interface {
	Upsert(ctx context.Context, grant *Grant) error
	Delete(ctx context.Context, userID, bookID string) error
	Get(ctx context.Context, userID, bookID string) (*Grant, error)
	ListForUser(ctx context.Context, userID string) ([]GrantWithBook, error)
	ListForBook(ctx context.Context, bookID string) ([]GrantWithUser, error)
	ListActiveBooks(
		ctx context.Context,
		userID string,
		now time.Time,
	) ([]AccessibleBook, error)
	Count(ctx context.Context, now time.Time) (active, expired int, err error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// Upsert keeps one row per (user, book); re-granting refreshes every field.
func (r *repository) Upsert(ctx context.Context, grant *Grant) error {
	query := `
		INSERT INTO user_book_access (user_id, book_id, granted_at, granted_by, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, book_id) DO UPDATE
		SET granted_at = EXCLUDED.granted_at,
		    granted_by = EXCLUDED.granted_by,
		    expires_at = EXCLUDED.expires_at
		RETURNING id`

	err := r.db.GetContext(ctx, &grant.ID, query,
		grant.UserID,
		grant.BookID,
		grant.GrantedAt,
		grant.GrantedBy,
		grant.ExpiresAt,
	)
	if err != nil {
		if core.IsForeignKeyViolation(err) {
			return fmt.Errorf("upsert grant: %w", core.ErrNotFound)
		}
		return fmt.Errorf("upsert grant: %w", err)
	}

	return nil
}

func (r *repository) Delete(ctx context.Context, userID, bookID string) error {
	query := `
		DELETE FROM user_book_access
		WHERE user_id = $1 AND book_id = $2`

	result, err := r.db.ExecContext(ctx, query, userID, bookID)
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete grant: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) Get(
	ctx context.Context,
	userID, bookID string,
) (*Grant, error) {
	query := `
		SELECT id, user_id, book_id, granted_at, granted_by, expires_at
		FROM user_book_access
		WHERE user_id = $1 AND book_id = $2`

	var g Grant
	err := r.db.GetContext(ctx, &g, query, userID, bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get grant: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get grant: %w", err)
	}

	return &g, nil
}

func (r *repository) ListForUser(
	ctx context.Context,
	userID string,
) ([]GrantWithBook, error) {
	query := `
		SELECT a.id, a.user_id, a.book_id, a.granted_at, a.granted_by, a.expires_at,
		       b.name AS book_name, b.author AS book_author
		FROM user_book_access a
		JOIN books b ON b.id = a.book_id
		WHERE a.user_id = $1
		ORDER BY a.granted_at DESC`

	grants := []GrantWithBook{}
	if err := r.db.SelectContext(ctx, &grants, query, userID); err != nil {
		return nil, fmt.Errorf("list grants for user: %w", err)
	}

	return grants, nil
}

func (r *repository) ListForBook(
	ctx context.Context,
	bookID string,
) ([]GrantWithUser, error) {
	query := `
		SELECT a.id, a.user_id, a.book_id, a.granted_at, a.granted_by, a.expires_at,
		       p.name AS user_name, u.email AS user_email
		FROM user_book_access a
		JOIN users u ON u.id = a.user_id
		JOIN user_profiles p ON p.id = a.user_id
		WHERE a.book_id = $1
		ORDER BY a.granted_at DESC`

	grants := []GrantWithUser{}
	if err := r.db.SelectContext(ctx, &grants, query, bookID); err != nil {
		return nil, fmt.Errorf("list grants for book: %w", err)
	}

	return grants, nil
}

func (r *repository) ListActiveBooks(
	ctx context.Context,
	userID string,
	now time.Time,
) ([]AccessibleBook, error) {
	query := `
		SELECT b.id AS book_id, b.name, b.author, b.description, b.category_id,
		       b.cover_path, b.total_pages, a.granted_at, a.expires_at
		FROM user_book_access a
		JOIN books b ON b.id = a.book_id
		WHERE a.user_id = $1
		  AND (a.expires_at IS NULL OR a.expires_at > $2)
		ORDER BY a.granted_at DESC`

	books := []AccessibleBook{}
	if err := r.db.SelectContext(ctx, &books, query, userID, now); err != nil {
		return nil, fmt.Errorf("list accessible books: %w", err)
	}

	return books, nil
}

func (r *repository) Count(
	ctx context.Context,
	now time.Time,
) (int, int, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE expires_at IS NULL OR expires_at > $1) AS active,
			COUNT(*) FILTER (WHERE expires_at <= $1) AS expired
		FROM user_book_access`

	var counts struct {
		Active  int `db:"active"`
		Expired int `db:"expired"`
	}
	if err := r.db.GetContext(ctx, &counts, query, now); err != nil {
		return 0, 0, fmt.Errorf("count grants: %w", err)
	}

	return counts.Active, counts.Expired, nil
}
