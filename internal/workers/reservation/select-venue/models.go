// internal/workers/reservation/select-venue/models.go
package selectvenue

import "energy-ai-agent/internal/models"

type Input struct {
	Restaurant string         `json:"restaurant"`
	Candidates []models.Venue `json:"candidates"`
}

type Output struct {
	Selected   bool          `json:"selected"`
	Restaurant *models.Venue `json:"restaurant"`
	Score      float64       `json:"score"`
}
