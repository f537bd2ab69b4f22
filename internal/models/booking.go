// internal/models/booking.go
package models

import "time"

// Booking is the persisted outcome of one /book or /confirm call.
type Booking struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	Plan       ReservationPlan `json:"plan"`
	Restaurant *Venue          `json:"restaurant,omitempty"`
	CallSID    string          `json:"call_sid,omitempty"`
	URL        string          `json:"url,omitempty"`
	Message    string          `json:"message,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
