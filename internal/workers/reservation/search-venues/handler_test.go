// internal/workers/reservation/search-venues/handler_test.go
package searchvenues

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"energy-ai-agent/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig(nominatimURL, overpassURL string) *Config {
	return &Config{
		NominatimURL: nominatimURL,
		OverpassURL:  overpassURL,
		ContactEmail: "ops@example.com",
		DefaultCity:  "台北",
		Timeout:      5 * time.Second,
		CacheTTL:     10 * time.Minute,
	}
}

func floatPtr(f float64) *float64 { return &f }

const nominatimBody = `[
  {"place_id":1,"osm_type":"node","osm_id":101,"lat":"25.0330","lon":"121.5654","display_name":"一蘭拉麵, 信義區, 台北市, 臺灣"},
  {"place_id":2,"osm_type":"way","osm_id":202,"lat":"25.0400","lon":"121.5500","display_name":"鷹流拉麵, 大安區, 台北市"}
]`

const enrichBody = `{"elements":[
  {"type":"node","id":101,"lat":25.033,"lon":121.5654,"tags":{"name":"一蘭拉麵","contact:phone":"02-1234-5678","website":"https://ichiran.example","opening_hours":"Mo-Su 10:00-22:00"}}
]}`

// osmServer answers Nominatim on /search and Overpass on /interpreter.
func osmServer(t *testing.T, overpass func(query string) string) (*httptest.Server, *int32) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Contains(t, r.Header.Get("User-Agent"), "ops@example.com")
		switch r.URL.Path {
		case "/search":
			assert.Equal(t, "json", r.URL.Query().Get("format"))
			assert.Equal(t, "1", r.URL.Query().Get("addressdetails"))
			w.Write([]byte(nominatimBody))
		case "/interpreter":
			require.NoError(t, r.ParseForm())
			w.Write([]byte(overpass(r.PostForm.Get("data"))))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_TextSearch(t *testing.T) {
	srv, _ := osmServer(t, func(query string) string {
		assert.Contains(t, query, "node(id:101)")
		assert.Contains(t, query, "way(id:202)")
		return enrichBody
	})
	h := NewHandler(createTestConfig(srv.URL+"/search", srv.URL+"/interpreter"), nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "拉麵", Location: "信義區", Limit: 5})
	require.NoError(t, err)
	require.Len(t, out.Candidates, 2)

	first := out.Candidates[0]
	assert.Equal(t, "一蘭拉麵", first.Name)
	assert.Equal(t, "node/101", first.PlaceID)
	assert.Equal(t, "02-1234-5678", first.Phone)
	assert.Equal(t, "https://ichiran.example", first.Website)
	assert.Equal(t, []string{"Mo-Su 10:00-22:00"}, first.OpeningHours)
	assert.InDelta(t, 25.0330, first.Lat, 1e-9)
	assert.Contains(t, first.MapsURL, "mlat=25.033000")
	assert.Contains(t, first.MapsNavURL, "destination_name=")
	assert.Nil(t, first.DistanceM)

	second := out.Candidates[1]
	assert.Equal(t, "way/202", second.PlaceID)
	assert.Empty(t, second.Phone)
}

func TestHandler_Execute_AroundSearch(t *testing.T) {
	var seenQuery string
	srv, _ := osmServer(t, func(query string) string {
		if strings.Contains(query, "around:") {
			seenQuery = query
			return `{"elements":[
			  {"type":"way","id":7,"center":{"lat":25.04,"lon":121.53},"tags":{"name":"麵屋","addr:city":"台北市","addr:district":"中山區","addr:street":"南京東路","addr:housenumber":"1號"}},
			  {"type":"node","id":8,"lat":25.05,"lon":121.54,"tags":{"cuisine":"ramen","phone":"+886 2 2222 3333"}}
			]}`
		}
		return `{"elements":[]}`
	})
	h := NewHandler(createTestConfig(srv.URL+"/search", srv.URL+"/interpreter"), nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{
		Query:   "ramen",
		Lat:     floatPtr(25.0478),
		Lng:     floatPtr(121.5319),
		RadiusM: 100,
		Limit:   5,
	})
	require.NoError(t, err)
	require.Len(t, out.Candidates, 2)

	assert.Contains(t, seenQuery, "(around:200,25.047800,121.531900)")
	assert.Contains(t, seenQuery, `["name"~"ramen",i]`)
	assert.Contains(t, seenQuery, `["cuisine"~"ramen",i]`)
	assert.Contains(t, seenQuery, "out center tags 5;")

	assert.Equal(t, "麵屋", out.Candidates[0].Name)
	assert.Equal(t, "台北市中山區南京東路1號", out.Candidates[0].Address)
	assert.InDelta(t, 25.04, out.Candidates[0].Lat, 1e-9)
	require.NotNil(t, out.Candidates[0].DistanceM)
	assert.Greater(t, *out.Candidates[0].DistanceM, 0.0)

	assert.Equal(t, "未命名餐廳", out.Candidates[1].Name)
	assert.Equal(t, "+886 2 2222 3333", out.Candidates[1].Phone)
}

func TestHandler_Execute_EnrichmentFailureKeepsCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			w.Write([]byte(nominatimBody))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	h := NewHandler(createTestConfig(srv.URL+"/search", srv.URL+"/interpreter"), nil, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{Query: "拉麵"})
	require.NoError(t, err)
	assert.Len(t, out.Candidates, 2)
	assert.Empty(t, out.Candidates[0].Phone)
}

func TestHandler_Execute_DryRun(t *testing.T) {
	cfg := createTestConfig("http://invalid.local", "http://invalid.local")
	cfg.DryRun = true
	h := NewHandler(cfg, nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "拉麵", Limit: 1})
	require.NoError(t, err)
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "範例拉麵一號", out.Candidates[0].Name)
	assert.Equal(t, "osm-demo1", out.Candidates[0].PlaceID)

	out, err = h.Execute(context.Background(), &Input{Query: "拉麵"})
	require.NoError(t, err)
	assert.Len(t, out.Candidates, 2)
	assert.Equal(t, "", out.Candidates[1].Website)
}

func TestHandler_Execute_CachesResults(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	srv, calls := osmServer(t, func(string) string { return `{"elements":[]}` })
	h := NewHandler(createTestConfig(srv.URL+"/search", srv.URL+"/interpreter"), rdb, logger.NewTestLogger(t))

	first, err := h.Execute(context.Background(), &Input{Query: "拉麵", Location: "台北"})
	require.NoError(t, err)
	afterFirst := atomic.LoadInt32(calls)

	second, err := h.Execute(context.Background(), &Input{Query: "拉麵", Location: "台北"})
	require.NoError(t, err)

	assert.Equal(t, afterFirst, atomic.LoadInt32(calls), "second search should be served from cache")
	assert.Equal(t, first.Candidates, second.Candidates)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "venues:"))
	assert.True(t, mr.TTL(keys[0]) > 0)

	var cached []json.RawMessage
	raw, _ := mr.Get(keys[0])
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Len(t, cached, 2)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	h := NewHandler(createTestConfig(srv.URL, srv.URL), nil, logger.NewTestLogger(t))
	_, err := h.Execute(context.Background(), &Input{Query: "拉麵"})
	assert.True(t, errors.Is(err, ErrPlacesSearchFailed))
}

func TestHandler_Execute_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	h := NewHandler(createTestConfig(srv.URL, srv.URL), nil, logger.NewTestLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := h.Execute(ctx, &Input{Query: "拉麵"})
	assert.True(t, errors.Is(err, ErrPlacesTimeout))
}

// ==========================
// Helper Tests
// ==========================

func TestClampRadius(t *testing.T) {
	assert.Equal(t, 3000, clampRadius(0))
	assert.Equal(t, 200, clampRadius(50))
	assert.Equal(t, 1500, clampRadius(1500))
	assert.Equal(t, 50000, clampRadius(90000))
}

func TestHaversine(t *testing.T) {
	// Taipei 101 to Taipei Main Station is roughly 4.6 km.
	d := haversine(25.033964, 121.564468, 25.04776, 121.51706)
	assert.InDelta(t, 5000, d, 600)
	assert.Equal(t, 0.0, haversine(25, 121, 25, 121))
}

func TestOverpassLiteral(t *testing.T) {
	assert.Equal(t, `a\\.b`, overpassLiteral("a.b"))
	assert.Equal(t, `say \"hi\"`, overpassLiteral(`say "hi"`))
}
