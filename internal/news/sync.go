package news

import (
	"context"
	"time"

	apperrors "energy-ai-agent/internal/common/errors"
	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/common/metrics"
	"energy-ai-agent/internal/models"
)

// Source yields the current announcements.
type Source interface {
	Crawl(ctx context.Context) ([]models.NewsItem, error)
}

// Syncer refreshes the cache file from the crawler and mirrors it into the search index.
type Syncer struct {
	source Source
	cache  *Cache
	index  *Index
	name   string
	logger logger.Logger
	now    func() time.Time
}

// NewSyncer builds a Syncer; index may be nil when Elasticsearch is not configured.
func NewSyncer(source Source, cache *Cache, index *Index, name string, log logger.Logger) *Syncer {
	return &Syncer{
		source: source,
		cache:  cache,
		index:  index,
		name:   name,
		logger: log.WithFields(map[string]interface{}{"component": "news-sync"}),
		now:    time.Now,
	}
}

// Sync writes a fresh snapshot. A failed crawl leaves the previous file untouched.
func (s *Syncer) Sync(ctx context.Context) (*models.NewsCache, error) {
	items, err := s.source.Crawl(ctx)
	if err != nil {
		metrics.NewsSyncTotal.WithLabelValues("error").Inc()
		s.logger.Error("news crawl failed", map[string]interface{}{"error": err.Error()})
		return nil, apperrors.NewNewsSyncFailedError(err)
	}

	snapshot := &models.NewsCache{
		Source:   s.name,
		SyncedAt: s.now().Format(time.RFC3339),
		Items:    items,
	}
	if err := s.cache.Write(snapshot); err != nil {
		metrics.NewsSyncTotal.WithLabelValues("error").Inc()
		s.logger.Error("news cache write failed", map[string]interface{}{"error": err.Error()})
		return nil, apperrors.NewStateWriteFailedError(err)
	}

	if s.index != nil {
		n, err := s.index.Put(ctx, snapshot)
		if err != nil {
			s.logger.Warn("news indexing incomplete", map[string]interface{}{
				"indexed": n,
				"error":   err.Error(),
			})
		}
	}

	metrics.NewsSyncTotal.WithLabelValues("ok").Inc()
	s.logger.Info("news synced", map[string]interface{}{"items": len(items)})
	return snapshot, nil
}
