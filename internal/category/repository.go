// AngelaMos | 2026
// repository.go

package category

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/bookshelf/internal/core"
)

type Repository interface {
	List(ctx context.Context) ([]Category, error)
	GetByID(ctx context.Context, id string) (*Category, error)
	Counts(ctx context.Context) ([]Count, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context) ([]Category, error) {
	query := `
		SELECT id, name, color, icon, description
		FROM categories
		ORDER BY name`

	categories := []Category{}
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	return categories, nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Category, error) {
	query := `
		SELECT id, name, color, icon, description
		FROM categories
		WHERE id = $1`

	var c Category
	err := r.db.GetContext(ctx, &c, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get category: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}

	return &c, nil
}

// Counts includes empty categories with a zero count.
func (r *repository) Counts(ctx context.Context) ([]Count, error) {
	query := `
		SELECT c.id AS category_id, c.name, COUNT(b.id) AS books
		FROM categories c
		LEFT JOIN books b ON b.category_id = c.id
		GROUP BY c.id, c.name
		ORDER BY c.name`

	counts := []Count{}
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count books per category: %w", err)
	}

	return counts, nil
}
