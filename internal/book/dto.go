// AngelaMos | 2026
// dto.go

package book

import (
	"strings"
	"time"
)

const (
	SortRecent = "recent"
	SortName   = "name"

	defaultPageSize = 12
	maxPageSize     = 100
)

// CreateBookRequest is the JSON "metadata" part of an upload.
type CreateBookRequest struct {
	Name        string  `json:"name"        validate:"required,min=1,max=200"`
	Author      string  `json:"author"      validate:"required,min=1,max=100"`
	Description string  `json:"description" validate:"max=1000"`
	CategoryID  *string `json:"category_id" validate:"omitempty,min=1,max=64"`
	Price       float64 `json:"price"       validate:"gte=0"`
	TotalPages  *int    `json:"total_pages" validate:"omitempty,gte=1"`
}

func (r *CreateBookRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Author = strings.TrimSpace(r.Author)
	r.Description = strings.TrimSpace(r.Description)
}

type UpdateBookRequest struct {
	Name        *string  `json:"name"        validate:"omitempty,min=1,max=200"`
	Author      *string  `json:"author"      validate:"omitempty,min=1,max=100"`
	Description *string  `json:"description" validate:"omitempty,max=1000"`
	CategoryID  *string  `json:"category_id" validate:"omitempty,max=64"`
	Price       *float64 `json:"price"       validate:"omitempty,gte=0"`
	TotalPages  *int     `json:"total_pages" validate:"omitempty,gte=0"`
}

func (r *UpdateBookRequest) Normalize() {
	for _, field := range []*string{r.Name, r.Author, r.Description} {
		if field != nil {
			*field = strings.TrimSpace(*field)
		}
	}
}

func (r *UpdateBookRequest) blank() bool {
	return (r.Name != nil && *r.Name == "") || (r.Author != nil && *r.Author == "")
}

type ListParams struct {
	Page     int
	PageSize int
	Category string
	Search   string
	Sort     string
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	if p.Sort != SortName {
		p.Sort = SortRecent
	}
	p.Search = strings.TrimSpace(p.Search)
	p.Category = strings.TrimSpace(p.Category)
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type BookResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Author       string    `json:"author"`
	Description  string    `json:"description"`
	CategoryID   *string   `json:"category_id"`
	CategoryName *string   `json:"category_name,omitempty"`
	CoverURL     string    `json:"cover_url,omitempty"`
	SizeBytes    int64     `json:"size_bytes"`
	TotalPages   int       `json:"total_pages"`
	Price        float64   `json:"price"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func ToBookResponse(b *Book, coverURL string) BookResponse {
	return BookResponse{
		ID:           b.ID,
		Name:         b.Name,
		Author:       b.Author,
		Description:  b.Description,
		CategoryID:   b.CategoryID,
		CategoryName: b.CategoryName,
		CoverURL:     coverURL,
		SizeBytes:    b.SizeBytes,
		TotalPages:   b.TotalPages,
		Price:        b.Price,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

type ReadResponse struct {
	BookID     string    `json:"book_id"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
	TotalPages int       `json:"total_pages"`
}
