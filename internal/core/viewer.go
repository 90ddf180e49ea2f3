// AngelaMos | 2026
// viewer.go

package core

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Viewer is the authenticated caller of a request. Handlers read it from the
// request context once and pass it down explicitly.
type Viewer struct {
	UserID string
	Role   string
}

func (v Viewer) IsAdmin() bool {
	return v.Role == RoleAdmin
}

func (v Viewer) IsAnonymous() bool {
	return v.UserID == ""
}
