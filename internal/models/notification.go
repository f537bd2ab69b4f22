// internal/models/notification.go
package models

type Notification struct {
	ID        string `json:"id"`
	BookingID string `json:"booking_id"`
	Channel   string `json:"channel"` // "email", "sms"
	Status    string `json:"status"`  // "sent", "failed", "disabled"
	SentAt    string `json:"sent_at,omitempty"`
}
