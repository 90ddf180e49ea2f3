// AngelaMos | 2026
// entity.go

package progress

import (
	"math"
	"time"
)

// Progress is the single row tracking how far a user has read into a book.
type Progress struct {
	UserID      string    `json:"user_id"      db:"user_id"`
	BookID      string    `json:"book_id"      db:"book_id"`
	CurrentPage int       `json:"current_page" db:"current_page"`
	TotalPages  *int      `json:"total_pages"  db:"total_pages"`
	Percent     int       `json:"progress"     db:"progress"`
	LastReadAt  time.Time `json:"last_read_at" db:"last_read_at"`
}

func (p *Progress) Completed() bool {
	return p.Percent >= 100
}

type WithBook struct {
	Progress
	BookName   string `json:"book_name"   db:"book_name"`
	BookAuthor string `json:"book_author" db:"book_author"`
}

type Stats struct {
	Total      int        `json:"total"            db:"total"`
	Completed  int        `json:"completed"        db:"completed"`
	InProgress int        `json:"in_progress"      db:"in_progress"`
	Average    int        `json:"average_progress" db:"average_progress"`
	LastReadAt *time.Time `json:"last_read_at"     db:"last_read_at"`
}

// Percent returns round(current/total*100) clamped to [0,100]. The second
// result is false when total is unknown.
func Percent(current, total int) (int, bool) {
	if total <= 0 {
		return 0, false
	}

	p := int(math.Round(float64(current) / float64(total) * 100))
	switch {
	case p < 0:
		return 0, true
	case p > 100:
		return 100, true
	}
	return p, true
}
