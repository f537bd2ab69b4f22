// internal/workers/reservation/place-reservation-call/models.go
package placereservationcall

import "energy-ai-agent/internal/models"

// ModeAuto is the one-shot /book behaviour: call when a phone exists, else offer a booking
// link, else report unsupported.
const ModeAuto = "auto"

type Input struct {
	Plan       models.ReservationPlan `json:"plan"`
	Restaurant *models.Venue          `json:"restaurant"`
	Mode       string                 `json:"mode"`
}

type Output struct {
	Status  string `json:"status"`
	SID     string `json:"sid,omitempty"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
}
