// internal/workers/reservation/search-venues/service.go
package searchvenues

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	apphttp "energy-ai-agent/internal/common/http"
	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/common/metrics"
	"energy-ai-agent/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	defaultLimit   = 5
	defaultRadiusM = 3000
	minRadiusM     = 200
	maxRadiusM     = 50000
	unnamedVenue   = "未命名餐廳"
	cacheKeyPrefix = "venues:"
)

// PlacesService searches OpenStreetMap for restaurants.
type PlacesService struct {
	config *Config
	http   *apphttp.Client
	cache  redis.UniversalClient
	logger logger.Logger
}

// NewPlacesService builds the service. cache may be nil.
func NewPlacesService(config *Config, cache redis.UniversalClient, log logger.Logger) *PlacesService {
	ua := "energy-ai-agent/1.0"
	if config.ContactEmail != "" {
		ua += " (" + config.ContactEmail + ")"
	}
	return &PlacesService{
		config: config,
		http: apphttp.NewClient(config.Timeout,
			apphttp.WithUserAgent(ua),
			apphttp.WithRetries(config.MaxRetries, 200*time.Millisecond),
		),
		cache:  cache,
		logger: log,
	}
}

// Search returns up to input.Limit candidates. Coordinates select the Overpass radius search,
// otherwise Nominatim text search is used.
func (s *PlacesService) Search(ctx context.Context, input *Input) ([]models.Venue, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	if s.config.DryRun {
		return cannedVenues(limit), nil
	}

	key := cacheKey(input, limit)
	if cached, ok := s.fromCache(ctx, key); ok {
		return cached, nil
	}

	start := time.Now()
	var (
		venues []models.Venue
		err    error
	)
	if input.Lat != nil && input.Lng != nil {
		venues, err = s.searchAround(ctx, input, limit)
	} else {
		venues, err = s.searchText(ctx, input, limit)
	}
	metrics.ObserveExternal("osm_search", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, err
	}

	s.enrich(ctx, venues)

	if input.Lat != nil && input.Lng != nil {
		for i := range venues {
			d := haversine(*input.Lat, *input.Lng, venues[i].Lat, venues[i].Lng)
			venues[i].DistanceM = &d
		}
	}

	s.toCache(ctx, key, venues)
	return venues, nil
}

func (s *PlacesService) searchText(ctx context.Context, input *Input, limit int) ([]models.Venue, error) {
	location := strings.TrimSpace(input.Location)
	if location == "" {
		location = s.config.DefaultCity
	}
	q := strings.TrimSpace(location + " " + input.Query + " restaurant")

	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("limit", strconv.Itoa(limit))

	var places []nominatimPlace
	if err := s.http.GetJSON(ctx, s.config.NominatimURL, params, &places); err != nil {
		return nil, fmt.Errorf("nominatim search: %w", err)
	}

	venues := make([]models.Venue, 0, len(places))
	for _, p := range places {
		lat, _ := strconv.ParseFloat(p.Lat, 64)
		lng, _ := strconv.ParseFloat(p.Lon, 64)
		name := strings.TrimSpace(strings.SplitN(p.DisplayName, ",", 2)[0])
		if name == "" {
			name = unnamedVenue
		}
		venues = append(venues, newVenue(name, p.DisplayName, fmt.Sprintf("%s/%d", p.OSMType, p.OSMID), lat, lng))
	}
	if len(venues) > limit {
		venues = venues[:limit]
	}
	return venues, nil
}

func (s *PlacesService) searchAround(ctx context.Context, input *Input, limit int) ([]models.Venue, error) {
	query := aroundQuery(input.Query, *input.Lat, *input.Lng, clampRadius(input.RadiusM), limit)

	var resp overpassResponse
	if err := s.http.PostFormJSON(ctx, s.config.OverpassURL, url.Values{"data": {query}}, &resp); err != nil {
		return nil, fmt.Errorf("overpass search: %w", err)
	}

	venues := make([]models.Venue, 0, len(resp.Elements))
	seen := make(map[string]bool)
	for _, el := range resp.Elements {
		id := fmt.Sprintf("%s/%d", el.Type, el.ID)
		if seen[id] {
			continue
		}
		seen[id] = true

		lat, lng := el.Lat, el.Lon
		if el.Center != nil {
			lat, lng = el.Center.Lat, el.Center.Lon
		}
		name := strings.TrimSpace(el.Tags["name"])
		if name == "" {
			name = unnamedVenue
		}
		v := newVenue(name, addressFromTags(el.Tags), id, lat, lng)
		applyContactTags(&v, el.Tags)
		venues = append(venues, v)
		if len(venues) == limit {
			break
		}
	}
	return venues, nil
}

// aroundQuery matches restaurants whose name or cuisine contains kw within radius metres.
func aroundQuery(kw string, lat, lng float64, radius, limit int) string {
	lit := overpassLiteral(strings.TrimSpace(kw))
	around := fmt.Sprintf("(around:%d,%.6f,%.6f)", radius, lat, lng)

	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n(\n")
	for _, typ := range []string{"node", "way"} {
		for _, key := range []string{"name", "cuisine"} {
			fmt.Fprintf(&b, "  %s[\"amenity\"=\"restaurant\"][\"%s\"~\"%s\",i]%s;\n", typ, key, lit, around)
		}
	}
	fmt.Fprintf(&b, ");\nout center tags %d;", limit)
	return b.String()
}

// enrich copies phone, website and opening hours from a second Overpass lookup by id. Failures
// leave the candidates as they are.
func (s *PlacesService) enrich(ctx context.Context, venues []models.Venue) {
	if len(venues) == 0 {
		return
	}
	query, ok := enrichQuery(venues)
	if !ok {
		return
	}

	var resp overpassResponse
	if err := s.http.PostFormJSON(ctx, s.config.OverpassURL, url.Values{"data": {query}}, &resp); err != nil {
		s.logger.Warn("venue enrichment failed", map[string]interface{}{"error": err.Error()})
		return
	}

	byID := make(map[string]map[string]string, len(resp.Elements))
	for _, el := range resp.Elements {
		byID[fmt.Sprintf("%s/%d", el.Type, el.ID)] = el.Tags
	}
	for i := range venues {
		if tags, ok := byID[venues[i].PlaceID]; ok {
			applyContactTags(&venues[i], tags)
		}
	}
}

func enrichQuery(venues []models.Venue) (string, bool) {
	ids := map[string][]string{}
	for _, v := range venues {
		parts := strings.SplitN(v.PlaceID, "/", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "node", "way", "relation":
			ids[parts[0]] = append(ids[parts[0]], parts[1])
		}
	}
	if len(ids) == 0 {
		return "", false
	}

	types := make([]string, 0, len(ids))
	for t := range ids {
		types = append(types, t)
	}
	sort.Strings(types)

	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n(\n")
	for _, t := range types {
		fmt.Fprintf(&b, "  %s(id:%s);\n", t, strings.Join(ids[t], ","))
	}
	b.WriteString(");\nout center tags;")
	return b.String(), true
}

func applyContactTags(v *models.Venue, tags map[string]string) {
	if phone := firstTag(tags, "contact:phone", "phone"); phone != "" {
		v.Phone = phone
	}
	if site := firstTag(tags, "contact:website", "website"); site != "" {
		v.Website = site
	}
	if hours := strings.TrimSpace(tags["opening_hours"]); hours != "" {
		v.OpeningHours = []string{hours}
	}
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(tags[k]); v != "" {
			return v
		}
	}
	return ""
}

func newVenue(name, address, placeID string, lat, lng float64) models.Venue {
	return models.Venue{
		Name:         name,
		Address:      address,
		PlaceID:      placeID,
		MapsURL:      osmMapsURL(lat, lng),
		MapsNavURL:   googleNavURL(name, lat, lng),
		Lat:          lat,
		Lng:          lng,
		OpeningHours: []string{},
	}
}

func cacheKey(input *Input, limit int) string {
	parts := []string{input.Query, input.Location, strconv.Itoa(limit), strconv.Itoa(input.RadiusM)}
	if input.Lat != nil && input.Lng != nil {
		parts = append(parts, fmt.Sprintf("%.5f,%.5f", *input.Lat, *input.Lng))
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (s *PlacesService) fromCache(ctx context.Context, key string) ([]models.Venue, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("venue cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return nil, false
	}
	var venues []models.Venue
	if err := json.Unmarshal(raw, &venues); err != nil {
		return nil, false
	}
	return venues, true
}

func (s *PlacesService) toCache(ctx context.Context, key string, venues []models.Venue) {
	if s.cache == nil || s.config.CacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(venues)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.config.CacheTTL).Err(); err != nil {
		s.logger.Warn("venue cache write failed", map[string]interface{}{"error": err.Error()})
	}
}

func cannedVenues(limit int) []models.Venue {
	price2, price1 := 2, 1
	venues := []models.Venue{
		{
			Name:         "範例拉麵一號",
			Address:      "台北市XX路1號",
			PlaceID:      "osm-demo1",
			Website:      "https://example.com",
			MapsURL:      "https://www.openstreetmap.org/",
			MapsNavURL:   "https://maps.google.com/",
			Lat:          25.033964,
			Lng:          121.564468,
			OpeningHours: []string{"Mon-Fri 11:30–21:00"},
			PriceLevel:   &price2,
		},
		{
			Name:         "範例拉麵二號",
			Address:      "台北市YY路2號",
			PlaceID:      "osm-demo2",
			MapsURL:      "https://www.openstreetmap.org/",
			MapsNavURL:   "https://maps.google.com/",
			Lat:          25.04776,
			Lng:          121.53185,
			OpeningHours: []string{"Sat-Sun 12:00–22:00"},
			PriceLevel:   &price1,
		},
	}
	if limit < len(venues) {
		venues = venues[:limit]
	}
	return venues
}
