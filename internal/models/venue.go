// internal/models/venue.go
package models

// Venue is a restaurant candidate returned by the places search. PlaceID is
// "<osm_type>/<osm_id>".
type Venue struct {
	Name             string   `json:"name"`
	Address          string   `json:"address"`
	Rating           *float64 `json:"rating"`
	UserRatingsTotal *int     `json:"user_ratings_total"`
	PlaceID          string   `json:"place_id"`
	Phone            string   `json:"phone,omitempty"`
	Website          string   `json:"website"`
	MapsURL          string   `json:"maps_url"`
	MapsNavURL       string   `json:"maps_nav_url"`
	Lat              float64  `json:"lat"`
	Lng              float64  `json:"lng"`
	OpenNow          *bool    `json:"open_now"`
	OpeningHours     []string `json:"opening_hours"`
	PriceLevel       *int     `json:"price_level"`
	PhotoURL         string   `json:"photo_url"`
	DistanceM        *float64 `json:"distance_m,omitempty"`
}

// RatingValue treats a missing rating as 0.
func (v Venue) RatingValue() float64 {
	if v.Rating == nil {
		return 0
	}
	return *v.Rating
}

// ReviewCount treats a missing review count as 0.
func (v Venue) ReviewCount() int {
	if v.UserRatingsTotal == nil {
		return 0
	}
	return *v.UserRatingsTotal
}
