// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// RefreshToken is one link in a sign-in's rotation chain. Tokens issued from
// the same sign-in share a FamilyID.
type RefreshToken struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	TokenHash    string     `db:"token_hash"`
	FamilyID     string     `db:"family_id"`
	ExpiresAt    time.Time  `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
	IsUsed       bool       `db:"is_used"`
	UsedAt       *time.Time `db:"used_at"`
	RevokedAt    *time.Time `db:"revoked_at"`
	ReplacedByID *string    `db:"replaced_by_id"`
	UserAgent    string     `db:"user_agent"`
	IPAddress    string     `db:"ip_address"`
}

type TokenState int

const (
	TokenActive TokenState = iota
	TokenUsed
	TokenRevoked
	TokenExpired
)

// StateAt orders the checks so that presenting a rotated token is always
// reported as reuse, even after it has expired or been revoked.
func (t *RefreshToken) StateAt(now time.Time) TokenState {
	switch {
	case t.IsUsed:
		return TokenUsed
	case t.RevokedAt != nil:
		return TokenRevoked
	case !now.Before(t.ExpiresAt):
		return TokenExpired
	default:
		return TokenActive
	}
}
