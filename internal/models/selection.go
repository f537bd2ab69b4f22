// internal/models/selection.go
package models

type Selection struct {
	Selection *string `json:"selection"`
}
