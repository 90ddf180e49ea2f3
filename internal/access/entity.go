// AngelaMos | 2026
// entity.go

package access

import (
	"time"
)

// Status is the outcome of an access check for one (user, book) pair.
type Status string

const (
	StatusGranted Status = "granted"
	StatusExpired Status = "expired"
	StatusNone    Status = "none"
)

type Grant struct {
	ID        string     `json:"id"                   db:"id"`
	UserID    string     `json:"user_id"              db:"user_id"`
	BookID    string     `json:"book_id"              db:"book_id"`
	GrantedAt time.Time  `json:"granted_at"           db:"granted_at"`
	GrantedBy *string    `json:"granted_by,omitempty" db:"granted_by"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// StatusAt evaluates the grant against now. A nil expiry never lapses; an
// expiry at or before now has lapsed.
func (g *Grant) StatusAt(now time.Time) Status {
	if g.ExpiresAt == nil || g.ExpiresAt.After(now) {
		return StatusGranted
	}
	return StatusExpired
}

type GrantWithBook struct {
	Grant
	BookName   string `json:"book_name"   db:"book_name"`
	BookAuthor string `json:"book_author" db:"book_author"`
}

type GrantWithUser struct {
	Grant
	UserName  string `json:"user_name"  db:"user_name"`
	UserEmail string `json:"user_email" db:"user_email"`
}

// AccessibleBook is a book the user can currently open, with its grant.
type AccessibleBook struct {
	BookID      string     `json:"book_id"              db:"book_id"`
	Name        string     `json:"name"                 db:"name"`
	Author      string     `json:"author"               db:"author"`
	Description string     `json:"description"          db:"description"`
	CategoryID  *string    `json:"category_id"          db:"category_id"`
	CoverPath   string     `json:"-"                    db:"cover_path"`
	TotalPages  int        `json:"total_pages"          db:"total_pages"`
	GrantedAt   time.Time  `json:"granted_at"           db:"granted_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}
