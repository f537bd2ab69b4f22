// internal/workers/reservation/parse-reservation-intent/models.go
package parsereservationintent

import "energy-ai-agent/internal/models"

type Input struct {
	Text string `json:"text"`
}

type Output struct {
	Plan models.ReservationPlan `json:"plan"`
}
