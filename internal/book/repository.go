// AngelaMos | 2026
// repository.go

package book

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/carterperez-dev/bookshelf/internal/core"
)

var ErrUnknownCategory = errors.New("unknown category")

type Repository interface {
	List(ctx context.Context, params ListParams) ([]Book, int, error)
	GetByID(ctx context.Context, id string) (*Book, error)
	Create(ctx context.Context, book *Book) error
	Update(ctx context.Context, book *Book) error
	Delete(ctx context.Context, id string) (*StoredObjects, error)
	Stats(ctx context.Context) (*Stats, error)
}

const selectBook = `
		SELECT b.id, b.name, b.author, b.description, b.category_id,
		       c.name AS category_name, b.pdf_path, b.cover_path, b.size_bytes,
		       b.total_pages, b.price, b.created_at, b.updated_at, b.created_by
		FROM books b
		LEFT JOIN categories c ON c.id = b.category_id`

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) List(
	ctx context.Context,
	params ListParams,
) ([]Book, int, error) {
	params.Normalize()

	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if params.Category != "" {
		conditions = append(conditions, fmt.Sprintf("b.category_id = $%d", argIdx))
		args = append(args, params.Category)
		argIdx++
	}

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(b.name ILIKE $%d OR b.author ILIKE $%d OR b.description ILIKE $%d)",
			argIdx, argIdx, argIdx))
		args = append(args, "%"+core.EscapeLike(params.Search)+"%")
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM books b WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	orderBy := "b.created_at DESC, b.id"
	if params.Sort == SortName {
		orderBy = "b.name ASC, b.id"
	}

	query := fmt.Sprintf(`%s
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		selectBook, whereClause, orderBy, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	books := []Book{}
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}

	return books, total, nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Book, error) {
	query := selectBook + `
		WHERE b.id = $1`

	var b Book
	err := r.db.GetContext(ctx, &b, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get book: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}

	return &b, nil
}

func (r *repository) Create(ctx context.Context, book *Book) error {
	query := `
		INSERT INTO books (
			id, name, author, description, category_id, pdf_path, cover_path,
			size_bytes, total_pages, price, created_by
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, book, query,
		book.ID,
		book.Name,
		book.Author,
		book.Description,
		book.CategoryID,
		book.PDFPath,
		book.CoverPath,
		book.SizeBytes,
		book.TotalPages,
		book.Price,
		book.CreatedBy,
	)
	if err != nil {
		if core.IsForeignKeyViolation(err) {
			return fmt.Errorf("create book: %w", ErrUnknownCategory)
		}
		if core.IsDuplicateKey(err) {
			return fmt.Errorf("create book: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create book: %w", err)
	}

	return nil
}

func (r *repository) Update(ctx context.Context, book *Book) error {
	query := `
		UPDATE books
		SET name = $2, author = $3, description = $4, category_id = $5,
		    total_pages = $6, price = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &book.UpdatedAt, query,
		book.ID,
		book.Name,
		book.Author,
		book.Description,
		book.CategoryID,
		book.TotalPages,
		book.Price,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update book: %w", core.ErrNotFound)
	}
	if err != nil {
		if core.IsForeignKeyViolation(err) {
			return fmt.Errorf("update book: %w", ErrUnknownCategory)
		}
		return fmt.Errorf("update book: %w", err)
	}

	return nil
}

// Delete removes the row and returns the object keys it referenced.
// Progress and grant rows go with it through ON DELETE CASCADE.
func (r *repository) Delete(
	ctx context.Context,
	id string,
) (*StoredObjects, error) {
	query := `
		DELETE FROM books
		WHERE id = $1
		RETURNING pdf_path, cover_path`

	var objects StoredObjects
	err := r.db.GetContext(ctx, &objects, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("delete book: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("delete book: %w", err)
	}

	return &objects, nil
}

func (r *repository) Stats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT COUNT(*) AS total_books,
		       COALESCE(SUM(size_bytes), 0) AS total_size,
		       COALESCE(AVG(size_bytes), 0)::BIGINT AS average_size,
		       COALESCE(SUM(total_pages), 0) AS total_pages,
		       MAX(created_at) AS newest_book_at
		FROM books`

	var stats Stats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("book stats: %w", err)
	}

	byCategory := `
		SELECT category_id, COUNT(*) AS books, COALESCE(SUM(size_bytes), 0) AS size_bytes
		FROM books
		GROUP BY category_id
		ORDER BY books DESC`

	stats.ByCategory = []CategoryStat{}
	if err := r.db.SelectContext(ctx, &stats.ByCategory, byCategory); err != nil {
		return nil, fmt.Errorf("book stats by category: %w", err)
	}

	return &stats, nil
}
