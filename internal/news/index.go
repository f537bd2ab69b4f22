package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"energy-ai-agent/internal/common/database"
	"energy-ai-agent/internal/common/metrics"
	"energy-ai-agent/internal/models"

	"github.com/google/uuid"
)

// SearchBackend is the part of the Elasticsearch client the index uses.
type SearchBackend interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
	Search(ctx context.Context, index string, query map[string]interface{}) (*database.SearchResponse, error)
}

// Index stores synced announcements in Elasticsearch for keyword search.
type Index struct {
	backend SearchBackend
	name    string
}

func NewIndex(backend SearchBackend, name string) *Index {
	return &Index{backend: backend, name: name}
}

type document struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Published string `json:"published,omitempty"`
	Source    string `json:"source"`
	SyncedAt  string `json:"synced_at"`
}

// DocumentID is stable per link so re-syncing the same announcement overwrites it.
func DocumentID(link string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(link)).String()
}

// Put indexes every item of the snapshot and returns how many were written.
func (i *Index) Put(ctx context.Context, snapshot *models.NewsCache) (int, error) {
	var errs []error
	written := 0
	for _, item := range snapshot.Items {
		doc := document{
			Title:     item.Title,
			Link:      item.Link,
			Published: item.Published,
			Source:    snapshot.Source,
			SyncedAt:  snapshot.SyncedAt,
		}
		if err := i.backend.IndexDocument(ctx, i.name, DocumentID(item.Link), doc); err != nil {
			errs = append(errs, err)
			continue
		}
		written++
	}
	return written, errors.Join(errs...)
}

// Search runs a match query on titles. A missing index yields no hits.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]models.NewsHit, error) {
	if limit <= 0 {
		limit = 5
	}
	body := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "source"},
			},
		},
		"sort": []interface{}{"_score", map[string]interface{}{"synced_at": map[string]string{"order": "desc", "unmapped_type": "date"}}},
	}
	if query == "" {
		body["query"] = map[string]interface{}{"match_all": map[string]interface{}{}}
	}

	start := time.Now()
	resp, err := i.backend.Search(ctx, i.name, body)
	metrics.ObserveExternal("elasticsearch", time.Since(start).Seconds(), err)
	if errors.Is(err, database.ErrIndexMissing) {
		return []models.NewsHit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search news index: %w", err)
	}

	hits := make([]models.NewsHit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		var doc document
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			continue
		}
		hits = append(hits, models.NewsHit{
			NewsItem: models.NewsItem{Title: doc.Title, Link: doc.Link, Published: doc.Published},
			Source:   doc.Source,
			SyncedAt: doc.SyncedAt,
			Score:    h.Score,
		})
	}
	return hits, nil
}
