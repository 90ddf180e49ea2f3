// AngelaMos | 2026
// repository.go

package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/bookshelf/internal/core"
)

type Repository interface {
	BookPages(ctx context.Context, bookID string) (int, error)
	Upsert(ctx context.Context, p *Progress, known bool) error
	Get(ctx context.Context, userID, bookID string) (*Progress, error)
	List(ctx context.Context, userID string, limit int) ([]WithBook, error)
	Delete(ctx context.Context, userID, bookID string) error
	Stats(ctx context.Context, userID string) (*Stats, error)
}

const selectWithBook = `
		SELECT rp.user_id, rp.book_id, rp.current_page, rp.total_pages,
		       rp.progress, rp.last_read_at, b.name AS book_name,
		       b.author AS book_author
		FROM reading_progress rp
		JOIN books b ON b.id = rp.book_id`

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) BookPages(ctx context.Context, bookID string) (int, error) {
	var pages int
	err := r.db.GetContext(ctx, &pages,
		`SELECT total_pages FROM books WHERE id = $1`, bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("get book pages: %w", core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get book pages: %w", err)
	}
	return pages, nil
}

// Upsert writes the one row for (user, book). When known is false the
// stored percent and total are kept as they were.
func (r *repository) Upsert(ctx context.Context, p *Progress, known bool) error {
	query := `
		INSERT INTO reading_progress (
			user_id, book_id, current_page, total_pages, progress, last_read_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, book_id) DO UPDATE SET
			current_page = EXCLUDED.current_page,
			total_pages = CASE WHEN $7::BOOLEAN THEN EXCLUDED.total_pages
			                   ELSE reading_progress.total_pages END,
			progress = CASE WHEN $7::BOOLEAN THEN EXCLUDED.progress
			                ELSE reading_progress.progress END,
			last_read_at = EXCLUDED.last_read_at
		RETURNING total_pages, progress, last_read_at`

	err := r.db.GetContext(ctx, p, query,
		p.UserID,
		p.BookID,
		p.CurrentPage,
		p.TotalPages,
		p.Percent,
		p.LastReadAt,
		known,
	)
	if err != nil {
		if core.IsForeignKeyViolation(err) {
			return fmt.Errorf("save progress: %w", core.ErrNotFound)
		}
		return fmt.Errorf("save progress: %w", err)
	}

	return nil
}

func (r *repository) Get(ctx context.Context, userID, bookID string) (*Progress, error) {
	query := `
		SELECT user_id, book_id, current_page, total_pages, progress, last_read_at
		FROM reading_progress
		WHERE user_id = $1 AND book_id = $2`

	var p Progress
	err := r.db.GetContext(ctx, &p, query, userID, bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get progress: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}

	return &p, nil
}

// List returns the user's rows newest first. A limit of zero means all.
func (r *repository) List(ctx context.Context, userID string, limit int) ([]WithBook, error) {
	query := selectWithBook + `
		WHERE rp.user_id = $1
		ORDER BY rp.last_read_at DESC, rp.book_id`
	args := []any{userID}

	if limit > 0 {
		query += `
		LIMIT $2`
		args = append(args, limit)
	}

	rows := []WithBook{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	return rows, nil
}

func (r *repository) Delete(ctx context.Context, userID, bookID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM reading_progress WHERE user_id = $1 AND book_id = $2`,
		userID, bookID)
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete progress: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) Stats(ctx context.Context, userID string) (*Stats, error) {
	query := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE progress = 100) AS completed,
		       COUNT(*) FILTER (WHERE progress BETWEEN 1 AND 99) AS in_progress,
		       COALESCE(ROUND(AVG(progress)), 0)::INT AS average_progress,
		       MAX(last_read_at) AS last_read_at
		FROM reading_progress
		WHERE user_id = $1`

	var stats Stats
	if err := r.db.GetContext(ctx, &stats, query, userID); err != nil {
		return nil, fmt.Errorf("progress stats: %w", err)
	}

	return &stats, nil
}
