// AngelaMos | 2026
// dto.go

package progress

const (
	defaultRecentLimit = 5
	maxRecentLimit     = 50
)

type SaveRequest struct {
	CurrentPage int  `json:"current_page" validate:"required,gte=1"`
	TotalPages  *int `json:"total_pages"  validate:"omitempty,gte=1"`
}
