// internal/workers/reservation/search-venues/models.go
package searchvenues

import "energy-ai-agent/internal/models"

type Input struct {
	Query    string   `json:"query"`
	Location string   `json:"location"`
	Limit    int      `json:"limit"`
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
	RadiusM  int      `json:"radius_m,omitempty"`
}

type Output struct {
	Candidates []models.Venue `json:"candidates"`
}

// nominatimPlace is one entry of a Nominatim /search answer.
type nominatimPlace struct {
	PlaceID     int64  `json:"place_id"`
	OSMType     string `json:"osm_type"`
	OSMID       int64  `json:"osm_id"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *overpassCenter   `json:"center,omitempty"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
