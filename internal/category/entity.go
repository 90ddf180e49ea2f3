// AngelaMos | 2026
// entity.go

package category

type Category struct {
	ID          string `json:"id"          db:"id"`
	Name        string `json:"name"        db:"name"`
	Color       string `json:"color"       db:"color"`
	Icon        string `json:"icon"        db:"icon"`
	Description string `json:"description" db:"description"`
}

type Count struct {
	CategoryID string `json:"category_id" db:"category_id"`
	Name       string `json:"name"        db:"name"`
	Books      int    `json:"books"       db:"books"`
}
