// AngelaMos | 2026
// entity.go

package book

import (
	"time"
)

type Book struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Author       string    `db:"author"`
	Description  string    `db:"description"`
	CategoryID   *string   `db:"category_id"`
	CategoryName *string   `db:"category_name"`
	PDFPath      string    `db:"pdf_path"`
	CoverPath    string    `db:"cover_path"`
	SizeBytes    int64     `db:"size_bytes"`
	TotalPages   int       `db:"total_pages"`
	Price        float64   `db:"price"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	CreatedBy    *string   `db:"created_by"`
}

func (b *Book) HasCover() bool {
	return b.CoverPath != ""
}

// StoredObjects are the object keys a deleted row pointed at.
type StoredObjects struct {
	PDFPath   string `db:"pdf_path"`
	CoverPath string `db:"cover_path"`
}

type CategoryStat struct {
	CategoryID *string `json:"category_id" db:"category_id"`
	Books      int     `json:"books"       db:"books"`
	SizeBytes  int64   `json:"size_bytes"  db:"size_bytes"`
}

type Stats struct {
	TotalBooks   int            `json:"total_books"    db:"total_books"`
	TotalSize    int64          `json:"total_size"     db:"total_size"`
	AverageSize  int64          `json:"average_size"   db:"average_size"`
	TotalPages   int64          `json:"total_pages"    db:"total_pages"`
	ByCategory   []CategoryStat `json:"by_category"    db:"-"`
	NewestBookAt *time.Time     `json:"newest_book_at" db:"newest_book_at"`
}
