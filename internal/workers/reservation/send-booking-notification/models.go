// internal/workers/reservation/send-booking-notification/models.go
package sendbookingnotification

import "energy-ai-agent/internal/models"

type Input struct {
	BookingID  string                 `json:"bookingId"`
	Status     string                 `json:"status"`
	Plan       models.ReservationPlan `json:"plan"`
	Restaurant *models.Venue          `json:"restaurant"`
	URL        string                 `json:"url,omitempty"`
	Message    string                 `json:"message,omitempty"`
	// Recipient overrides; the configured addresses are used when empty.
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Output struct {
	NotificationID string                `json:"notificationId"`
	Status         string                `json:"status"` // "sent", "failed", "disabled"
	Channels       []models.Notification `json:"channels"`
	SentAt         string                `json:"sentAt"`
}

// Statuses
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)
