// internal/models/reservation.go
package models

// ReservationPlan is the structured form of a spoken reservation request.
type ReservationPlan struct {
	Cuisine    string `json:"cuisine"`
	Datetime   string `json:"datetime"` // "YYYY-MM-DD HH:MM" in the configured zone
	PartySize  int    `json:"party_size"`
	Location   string `json:"location"`
	Restaurant string `json:"restaurant"`
	Notes      string `json:"notes"`
}

// Reservation outcomes reported by /book and recorded with each booking.
const (
	StatusNoCandidates     = "no_candidates"
	StatusNoSelection      = "no_selection"
	StatusRequestedViaCall = "requested_via_call"
	StatusNeedsManualClick = "needs_manual_click"
	StatusUnsupported      = "unsupported"
	StatusLink             = "link"
	StatusNoPhoneLink      = "no_phone_link"
	StatusBridging         = "bridging"
)

// Call modes accepted by /confirm.
const (
	ModeCall          = "call"
	ModeLinkOnly      = "link_only"
	ModeCallAndBridge = "call_and_bridge"
)
