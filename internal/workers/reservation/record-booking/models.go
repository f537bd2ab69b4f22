// internal/workers/reservation/record-booking/models.go
package recordbooking

import "energy-ai-agent/internal/models"

type Input struct {
	Status     string                 `json:"status"`
	Plan       models.ReservationPlan `json:"plan"`
	Restaurant *models.Venue          `json:"restaurant"`
	SID        string                 `json:"sid"`
	URL        string                 `json:"url"`
	Message    string                 `json:"message"`
}

type Output struct {
	BookingID string `json:"bookingId"`
	CreatedAt string `json:"createdAt"`
}
