// internal/workers/assistant/search-energy-news/models.go
package searchenergynews

import "energy-ai-agent/internal/models"

type Input struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type Output struct {
	Hits      []models.NewsHit `json:"hits"`
	TotalHits int              `json:"totalHits"`
}
