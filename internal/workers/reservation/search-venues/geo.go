package searchvenues

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
)

const earthRadiusM = 6371000.0

// haversine returns the great-circle distance in metres.
func haversine(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(a))
}

func clampRadius(r int) int {
	switch {
	case r <= 0:
		return defaultRadiusM
	case r < minRadiusM:
		return minRadiusM
	case r > maxRadiusM:
		return maxRadiusM
	}
	return r
}

func osmMapsURL(lat, lng float64) string {
	return fmt.Sprintf("https://www.openstreetmap.org/?mlat=%.6f&mlon=%.6f#map=18/%.6f/%.6f", lat, lng, lat, lng)
}

func googleNavURL(name string, lat, lng float64) string {
	return fmt.Sprintf("https://www.google.com/maps/dir/?api=1&destination=%.6f,%.6f&destination_name=%s",
		lat, lng, url.QueryEscape(name))
}

// addressFromTags prefers addr:full, else joins the structured parts Taiwan-style.
func addressFromTags(tags map[string]string) string {
	if full := strings.TrimSpace(tags["addr:full"]); full != "" {
		return full
	}
	var b strings.Builder
	for _, k := range []string{"addr:city", "addr:district", "addr:street", "addr:housenumber"} {
		b.WriteString(strings.TrimSpace(tags[k]))
	}
	return b.String()
}

// overpassLiteral quotes kw as a case-insensitive regexp inside an Overpass string literal.
func overpassLiteral(kw string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(regexp.QuoteMeta(kw))
}
