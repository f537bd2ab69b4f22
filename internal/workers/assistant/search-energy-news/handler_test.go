// internal/workers/assistant/search-energy-news/handler_test.go
package searchenergynews

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"energy-ai-agent/internal/common/config"
	"energy-ai-agent/internal/common/database"
	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/models"
	"energy-ai-agent/internal/news"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSearcher struct {
	SearchFunc func(ctx context.Context, query string, limit int) ([]models.NewsHit, error)
	lastQuery  string
	lastLimit  int
}

func (m *mockSearcher) Search(ctx context.Context, query string, limit int) ([]models.NewsHit, error) {
	m.lastQuery, m.lastLimit = query, limit
	return m.SearchFunc(ctx, query, limit)
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second, DefaultLimit: 5, MaxLimit: 20}
}

func TestHandler_Execute(t *testing.T) {
	hit := models.NewsHit{NewsItem: models.NewsItem{Title: "綠能", Link: "https://e.gov/g"}, Score: 1}

	tests := []struct {
		name     string
		input    *Input
		search   func(ctx context.Context, query string, limit int) ([]models.NewsHit, error)
		wantErr  error
		validate func(t *testing.T, out *Output, m *mockSearcher)
	}{
		{
			name:  "default limit and trimmed query",
			input: &Input{Query: "  綠能 "},
			search: func(ctx context.Context, query string, limit int) ([]models.NewsHit, error) {
				return []models.NewsHit{hit}, nil
			},
			validate: func(t *testing.T, out *Output, m *mockSearcher) {
				assert.Equal(t, "綠能", m.lastQuery)
				assert.Equal(t, 5, m.lastLimit)
				assert.Equal(t, 1, out.TotalHits)
				assert.Equal(t, "綠能", out.Hits[0].Title)
			},
		},
		{
			name:  "limit clamped",
			input: &Input{Query: "x", Limit: 500},
			search: func(ctx context.Context, query string, limit int) ([]models.NewsHit, error) {
				return nil, nil
			},
			validate: func(t *testing.T, out *Output, m *mockSearcher) {
				assert.Equal(t, 20, m.lastLimit)
				assert.NotNil(t, out.Hits)
				assert.Equal(t, 0, out.TotalHits)
			},
		},
		{
			name:  "backend failure",
			input: &Input{Query: "x"},
			search: func(ctx context.Context, query string, limit int) ([]models.NewsHit, error) {
				return nil, errors.New("es 500")
			},
			wantErr: ErrSearchQueryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockSearcher{SearchFunc: tt.search}
			h := NewHandler(createTestConfig(), m, logger.NewTestLogger(t))
			out, err := h.Execute(context.Background(), tt.input)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			tt.validate(t, out, m)
		})
	}
}

func TestHandler_Execute_Timeout(t *testing.T) {
	m := &mockSearcher{SearchFunc: func(ctx context.Context, query string, limit int) ([]models.NewsHit, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	h := NewHandler(createTestConfig(), m, logger.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.Execute(ctx, &Input{Query: "x"})
	assert.ErrorIs(t, err, ErrSearchTimeout)
}

// The news index backed by the real Elasticsearch client against a stub cluster.
func TestHandler_WithElasticsearch(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if !strings.HasSuffix(r.URL.Path, "/_search") {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		assert.Equal(t, "/energy-news/_search", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		_, _ = w.Write([]byte(`{"took":3,"hits":{"total":{"value":1},"max_score":1.5,"hits":[
			{"_id":"a","_score":1.5,"_source":{"title":"儲能公告","link":"https://e.gov/s","source":"能源署","synced_at":"2026-10-18T08:00:00+08:00"}}
		]}}`))
	}))
	defer srv.Close()

	es, err := database.NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	h := NewHandler(createTestConfig(), news.NewIndex(es, "energy-news"), logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{Query: "儲能", Limit: 3})
	require.NoError(t, err)

	require.Len(t, out.Hits, 1)
	assert.Equal(t, "儲能公告", out.Hits[0].Title)
	assert.Equal(t, "能源署", out.Hits[0].Source)
	assert.Equal(t, 1.5, out.Hits[0].Score)
	assert.EqualValues(t, 3, gotBody["size"])
}
