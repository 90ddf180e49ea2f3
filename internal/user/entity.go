// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/carterperez-dev/bookshelf/internal/core"
)

// User joins the auth identity (users) with its profile row (user_profiles).
type User struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	Name         string     `db:"name"`
	Role         string     `db:"role"`
	TokenVersion int        `db:"token_version"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	LastSignInAt *time.Time `db:"last_sign_in_at"`
	DeletedAt    *time.Time `db:"deleted_at"`
}

func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

func (u *User) IsAdmin() bool {
	return u.Role == core.RoleAdmin
}

// Profile is the public part of a user shown to other components.
type Profile struct {
	ID           string     `json:"id"                        db:"id"`
	Name         string     `json:"name"                      db:"name"`
	Role         string     `json:"role"                      db:"role"`
	CreatedAt    time.Time  `json:"created_at"                db:"created_at"`
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty" db:"last_sign_in_at"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:           u.ID,
		Name:         u.Name,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
		LastSignInAt: u.LastSignInAt,
	}
}
