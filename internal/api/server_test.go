package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"energy-ai-agent/internal/chat"
	"energy-ai-agent/internal/common/config"
	apphttp "energy-ai-agent/internal/common/http"
	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/llm"
	"energy-ai-agent/internal/models"
	"energy-ai-agent/internal/news"
	"energy-ai-agent/internal/rag"
	"energy-ai-agent/internal/selection"
	runtoolagent "energy-ai-agent/internal/workers/assistant/run-tool-agent"
	parsereservationintent "energy-ai-agent/internal/workers/reservation/parse-reservation-intent"
	placereservationcall "energy-ai-agent/internal/workers/reservation/place-reservation-call"
	recordbooking "energy-ai-agent/internal/workers/reservation/record-booking"
	searchvenues "energy-ai-agent/internal/workers/reservation/search-venues"
	selectvenue "energy-ai-agent/internal/workers/reservation/select-venue"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepFunc[I, O any] func(ctx context.Context, input *I) (*O, error)

func (f stepFunc[I, O]) Execute(ctx context.Context, input *I) (*O, error) { return f(ctx, input) }

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func createTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Name = "energy-ai-agent"
	cfg.App.Version = "test"
	cfg.App.DryRun = true
	cfg.Integrations.Twilio.Language = "zh-TW"
	cfg.APIs.Places.DefaultCity = "台北"
	cfg.News.PageURL = "https://www.example.gov.tw/News.aspx?n=1"
	return cfg
}

func testVenue(phone string) models.Venue {
	return models.Venue{Name: "一蘭拉麵", Address: "台北市信義區", Phone: phone, MapsURL: "https://osm.example/v1"}
}

func reservationDeps(candidates []models.Venue) Deps {
	return Deps{
		Config: createTestConfig(),
		Logger: logger.NewNoOpLogger(),
		Intent: stepFunc[parsereservationintent.Input, parsereservationintent.Output](
			func(_ context.Context, in *parsereservationintent.Input) (*parsereservationintent.Output, error) {
				return &parsereservationintent.Output{Plan: models.ReservationPlan{
					Cuisine: "拉麵", Datetime: "2025-03-14 19:00", PartySize: 2, Location: "台北",
				}}, nil
			}),
		Places: stepFunc[searchvenues.Input, searchvenues.Output](
			func(_ context.Context, in *searchvenues.Input) (*searchvenues.Output, error) {
				return &searchvenues.Output{Candidates: candidates}, nil
			}),
		Picker: stepFunc[selectvenue.Input, selectvenue.Output](
			func(_ context.Context, in *selectvenue.Input) (*selectvenue.Output, error) {
				if len(in.Candidates) == 0 {
					return &selectvenue.Output{}, nil
				}
				v := in.Candidates[0]
				return &selectvenue.Output{Selected: true, Restaurant: &v, Score: 1}, nil
			}),
		Caller: stepFunc[placereservationcall.Input, placereservationcall.Output](
			func(_ context.Context, in *placereservationcall.Input) (*placereservationcall.Output, error) {
				if in.Mode == models.ModeLinkOnly {
					return &placereservationcall.Output{Status: models.StatusLink, URL: in.Restaurant.MapsURL}, nil
				}
				if in.Restaurant.Phone == "" {
					return &placereservationcall.Output{Status: models.StatusUnsupported, Message: placereservationcall.MessageUnsupported}, nil
				}
				return &placereservationcall.Output{Status: models.StatusRequestedViaCall, SID: "mock-call-sid", Message: placereservationcall.MessageRequestedViaCall}, nil
			}),
	}
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestIndexAndEnv(t *testing.T) {
	deps := reservationDeps(nil)
	deps.LLMModel = "gpt-4o-mini"
	r := NewRouter(deps)

	w := doJSON(t, r, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, true, body["dry_run"])
	assert.Equal(t, "gpt-4o-mini", body["llm_model"])
	assert.NotEmpty(t, w.Header().Get(headerRequestID))

	w = doJSON(t, r, http.MethodGet, "/env", nil)
	body = decode(t, w)
	assert.Equal(t, false, body["OPENAI_API_KEY_set"])
	assert.Equal(t, "台北", body["DEFAULT_CITY"])

	w = doJSON(t, r, http.MethodPost, "/debug/echo", map[string]interface{}{"a": 1})
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, decode(t, w)["received"])

	w = doJSON(t, r, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReady(t *testing.T) {
	tests := []struct {
		name   string
		ready  map[string]Pinger
		status int
	}{
		{name: "no stores", ready: nil, status: http.StatusOK},
		{
			name:   "all healthy",
			ready:  map[string]Pinger{"redis": pingFunc(func(context.Context) error { return nil })},
			status: http.StatusOK,
		},
		{
			name: "one failing",
			ready: map[string]Pinger{
				"redis":    pingFunc(func(context.Context) error { return nil }),
				"postgres": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
			},
			status: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := reservationDeps(nil)
			deps.Ready = tt.ready
			w := doJSON(t, NewRouter(deps), http.MethodGet, "/ready", nil)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestPlan(t *testing.T) {
	t.Run("returns plan and candidates", func(t *testing.T) {
		var got *searchvenues.Input
		deps := reservationDeps([]models.Venue{testVenue("02-1234-5678")})
		places := deps.Places
		deps.Places = stepFunc[searchvenues.Input, searchvenues.Output](
			func(ctx context.Context, in *searchvenues.Input) (*searchvenues.Output, error) {
				got = in
				return places.Execute(ctx, in)
			})

		w := doJSON(t, NewRouter(deps), http.MethodPost, "/plan", map[string]interface{}{"text": "明晚七點兩位拉麵"})
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Len(t, body["candidates"], 1)
		assert.Equal(t, "拉麵", body["plan"].(map[string]interface{})["cuisine"])
		require.NotNil(t, got)
		assert.Equal(t, "拉麵", got.Query)
		assert.Equal(t, candidateLimit, got.Limit)
		assert.Equal(t, defaultRadiusM, got.RadiusM)
	})

	t.Run("missing text", func(t *testing.T) {
		w := doJSON(t, NewRouter(reservationDeps(nil)), http.MethodPost, "/plan", map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("intent failure is a bad gateway", func(t *testing.T) {
		deps := reservationDeps(nil)
		deps.Intent = stepFunc[parsereservationintent.Input, parsereservationintent.Output](
			func(context.Context, *parsereservationintent.Input) (*parsereservationintent.Output, error) {
				return nil, errors.New("INTENT_PARSING_FAILED")
			})
		w := doJSON(t, NewRouter(deps), http.MethodPost, "/plan", map[string]interface{}{"text": "x"})
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, decode(t, w)["error"], "INTENT_PARSING_FAILED")
	})
}

func TestBook(t *testing.T) {
	tests := []struct {
		name       string
		candidates []models.Venue
		setup      func(d *Deps)
		status     int
		validate   func(t *testing.T, body map[string]interface{})
	}{
		{
			name:       "no candidates",
			candidates: nil,
			status:     http.StatusOK,
			validate: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, models.StatusNoCandidates, body["status"])
				assert.Equal(t, []interface{}{}, body["candidates"])
			},
		},
		{
			name:       "calls the picked venue",
			candidates: []models.Venue{testVenue("02-1234-5678")},
			status:     http.StatusOK,
			validate: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, models.StatusRequestedViaCall, body["status"])
				assert.Equal(t, "mock-call-sid", body["sid"])
				assert.Equal(t, "一蘭拉麵", body["restaurant"].(map[string]interface{})["name"])
			},
		},
		{
			name:       "picker finds nothing",
			candidates: []models.Venue{testVenue("")},
			setup: func(d *Deps) {
				d.Picker = stepFunc[selectvenue.Input, selectvenue.Output](
					func(context.Context, *selectvenue.Input) (*selectvenue.Output, error) {
						return &selectvenue.Output{}, nil
					})
			},
			status: http.StatusOK,
			validate: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, models.StatusNoSelection, body["status"])
			},
		},
		{
			name:       "records the outcome",
			candidates: []models.Venue{testVenue("")},
			setup: func(d *Deps) {
				d.Recorder = stepFunc[recordbooking.Input, recordbooking.Output](
					func(_ context.Context, in *recordbooking.Input) (*recordbooking.Output, error) {
						if in.Status != models.StatusUnsupported {
							return nil, fmt.Errorf("unexpected status %s", in.Status)
						}
						return &recordbooking.Output{BookingID: "bk-1"}, nil
					})
			},
			status: http.StatusOK,
			validate: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, models.StatusUnsupported, body["status"])
				assert.Equal(t, "bk-1", body["booking_id"])
			},
		},
		{
			name:       "recorder failure does not fail the booking",
			candidates: []models.Venue{testVenue("02-1234-5678")},
			setup: func(d *Deps) {
				d.Recorder = stepFunc[recordbooking.Input, recordbooking.Output](
					func(context.Context, *recordbooking.Input) (*recordbooking.Output, error) {
						return nil, errors.New("BOOKING_RECORD_FAILED")
					})
			},
			status: http.StatusOK,
			validate: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, models.StatusRequestedViaCall, body["status"])
				assert.NotContains(t, body, "booking_id")
			},
		},
		{
			name:       "places failure",
			candidates: nil,
			setup: func(d *Deps) {
				d.Places = stepFunc[searchvenues.Input, searchvenues.Output](
					func(context.Context, *searchvenues.Input) (*searchvenues.Output, error) {
						return nil, errors.New("PLACES_TIMEOUT")
					})
			},
			status: http.StatusInternalServerError,
			validate: func(t *testing.T, body map[string]interface{}) {
				assert.Contains(t, body["error"], "PLACES_TIMEOUT")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := reservationDeps(tt.candidates)
			if tt.setup != nil {
				tt.setup(&deps)
			}
			w := doJSON(t, NewRouter(deps), http.MethodPost, "/book", map[string]interface{}{"text": "明晚七點兩位拉麵"})
			require.Equal(t, tt.status, w.Code, w.Body.String())
			tt.validate(t, decode(t, w))
		})
	}
}

func TestConfirm(t *testing.T) {
	r := NewRouter(reservationDeps(nil))
	venue := testVenue("02-1234-5678")

	w := doJSON(t, r, http.MethodPost, "/confirm", map[string]interface{}{"plan": models.ReservationPlan{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/confirm", map[string]interface{}{"restaurant": venue, "mode": "fax"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/confirm", map[string]interface{}{"restaurant": venue, "mode": models.ModeLinkOnly})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, models.StatusLink, body["status"])
	assert.Equal(t, venue.MapsURL, body["url"])

	w = doJSON(t, r, http.MethodPost, "/confirm", map[string]interface{}{"restaurant": venue})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mock-call-sid", decode(t, w)["sid"])
}

func TestBridge(t *testing.T) {
	r := NewRouter(reservationDeps(nil))

	req := httptest.NewRequest(http.MethodPost, "/bridge?to=%2B886212345678", strings.NewReader("Digits=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "xml")
	assert.Contains(t, w.Body.String(), "即將轉接餐廳")
	assert.Contains(t, w.Body.String(), "<Dial>+886212345678</Dial>")
}

func TestListBookings(t *testing.T) {
	w := doJSON(t, NewRouter(reservationDeps(nil)), http.MethodGet, "/bookings", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAgent(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "answer", status: http.StatusOK},
		{name: "missing question", err: fmt.Errorf("%w: question is required", runtoolagent.ErrQuestionRequired), status: http.StatusBadRequest},
		{name: "timeout", err: fmt.Errorf("%w: deadline", runtoolagent.ErrLLMTimeout), status: http.StatusGatewayTimeout},
		{name: "model failure", err: fmt.Errorf("%w: boom", runtoolagent.ErrLLMFailed), status: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := reservationDeps(nil)
			deps.Agent = stepFunc[runtoolagent.Input, runtoolagent.Output](
				func(context.Context, *runtoolagent.Input) (*runtoolagent.Output, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &runtoolagent.Output{Answer: "42", Tool: "web_search"}, nil
				})
			w := doJSON(t, NewRouter(deps), http.MethodPost, "/agent", map[string]interface{}{"question": "q"})
			assert.Equal(t, tt.status, w.Code)
			if tt.err == nil {
				assert.Equal(t, "42", decode(t, w)["answer"])
			}
		})
	}
}

func TestChatRoutes(t *testing.T) {
	client := &llm.Fake{ChatFunc: func(context.Context, llm.ChatRequest) (string, error) { return "你好", nil }}
	deps := reservationDeps(nil)
	deps.Chat = chat.NewService(chat.NewMemoryStore(30), client, nil, chat.Options{DefaultModel: "fake-model"}, logger.NewNoOpLogger())
	r := NewRouter(deps)

	w := doJSON(t, r, http.MethodPost, "/chat", map[string]interface{}{"session_id": "s1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/chat", map[string]interface{}{"session_id": "s1", "user": "嗨"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "你好", decode(t, w)["answer"])

	w = doJSON(t, r, http.MethodGet, "/chat/s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["history_len"])

	w = doJSON(t, r, http.MethodDelete, "/chat/s1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/chat/s1", nil)
	assert.Equal(t, float64(0), decode(t, w)["history_len"])
}

func multipartRequest(t *testing.T, path, filename string, content []byte, question string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("question", question))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAskTable(t *testing.T) {
	deps := reservationDeps(nil)
	deps.Config.Server.MaxUploadMB = 1
	deps.RAG = rag.NewService(&llm.Fake{Disabled: true}, config.RAGConfig{}, logger.NewNoOpLogger())
	r := NewRouter(deps)

	t.Run("offline summary as html", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, multipartRequest(t, "/ask_table?format=html", "usage.csv", []byte("月份,度數\n一月,120\n二月,98\n"), "哪個月用電最多？"))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Contains(t, body["answer"], "2×2")
		assert.Contains(t, body["answer_html"], "<table>")
	})

	t.Run("missing file", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, multipartRequest(t, "/ask_table", "", nil, "q"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("legacy excel is unsupported", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, multipartRequest(t, "/ask_table", "old.xls", []byte{0xD0, 0xCF}, "q"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("upload too large", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, multipartRequest(t, "/ask_table", "big.csv", bytes.Repeat([]byte("a,b\n"), 400_000), "q"))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestAskWithoutRAG(t *testing.T) {
	w := doJSON(t, NewRouter(reservationDeps(nil)), http.MethodPost, "/ask_web", map[string]interface{}{"question": "q"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestEnergyNewsCache(t *testing.T) {
	dir := t.TempDir()
	cache := news.NewCache(filepath.Join(dir, "energy_news.json"))
	deps := reservationDeps(nil)
	deps.NewsCache = cache
	r := NewRouter(deps)

	w := doJSON(t, r, http.MethodGet, "/energy-news/cache", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, decode(t, w)["items"])

	require.NoError(t, cache.Write(&models.NewsCache{
		Source:   "經濟部能源署",
		SyncedAt: "2025-03-14T10:00:00+08:00",
		Items:    []models.NewsItem{{Title: "再生能源公告", Link: "https://www.example.gov.tw/News.aspx?n=1&sms=2&menu_id=3"}},
	}))

	w = doJSON(t, r, http.MethodGet, "/energy-news/cache", nil)
	assert.Len(t, decode(t, w)["items"], 1)

	w = doJSON(t, r, http.MethodGet, "/energy-news/feed.xml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/rss+xml")
	assert.Contains(t, w.Body.String(), "再生能源公告")

	w = doJSON(t, r, http.MethodGet, "/energy-news/search?q=能源", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestEnergyNews(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code := int(status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>t</title>
<item><title>電價公告</title><link>https://www.example.gov.tw/n/1</link><pubDate>Fri, 14 Mar 2025 10:00:00 +0800</pubDate></item>
</channel></rss>`))
	}))
	defer srv.Close()

	deps := reservationDeps(nil)
	deps.NewsFeed = news.NewFeedReader(apphttp.NewClient(2*time.Second), srv.URL, "經濟部能源署", "test-agent", 5)
	r := NewRouter(deps)

	w := doJSON(t, r, http.MethodGet, "/energy-news", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "經濟部能源署", body["source"])
	assert.Len(t, body["items"], 1)

	status.Store(http.StatusServiceUnavailable)
	w = doJSON(t, r, http.MethodGet, "/energy-news", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "NEWS_FETCH_FAILED", decode(t, w)["code"])
}

func TestSelection(t *testing.T) {
	deps := reservationDeps(nil)
	deps.Selection = selection.NewStore(filepath.Join(t.TempDir(), "selected.json"))
	r := NewRouter(deps)

	w := doJSON(t, r, http.MethodGet, "/selected.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode(t, w)["selection"])

	w = doJSON(t, r, http.MethodPost, "/api/select", map[string]interface{}{"name": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/select", map[string]interface{}{"name": "鼎泰豐"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	w = doJSON(t, r, http.MethodGet, "/selected.json", nil)
	assert.Equal(t, "鼎泰豐", decode(t, w)["selection"])
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RateLimit(1, 1), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := doJSON(t, r, http.MethodGet, "/x", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, r, http.MethodGet, "/x", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(logger.NewNoOpLogger()))
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	w := doJSON(t, r, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode(t, w)["error"])
}
