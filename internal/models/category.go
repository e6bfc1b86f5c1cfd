// internal/models/category.go
package models

// CategoryNode is one entry of the feed's category forest. Level is 1 for a
// node whose parent is absent or unknown.
type CategoryNode struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
	Level    int     `json:"level"`
}
