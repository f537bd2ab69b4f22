package news

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	apperrors "energy-ai-agent/internal/common/errors"
	apphttp "energy-ai-agent/internal/common/http"
	"energy-ai-agent/internal/common/metrics"
	"energy-ai-agent/internal/models"

	"github.com/gorilla/feeds"
	"golang.org/x/net/html/charset"
)

// FeedReader fetches the live announcements RSS feed.
type FeedReader struct {
	client    *apphttp.Client
	url       string
	source    string
	userAgent string
	limit     int
}

func NewFeedReader(client *apphttp.Client, url, source, userAgent string, limit int) *FeedReader {
	return &FeedReader{client: client, url: url, source: source, userAgent: userAgent, limit: limit}
}

// Latest returns the first items of the feed in document order.
func (r *FeedReader) Latest(ctx context.Context) (*models.NewsFeed, error) {
	start := time.Now()
	body, err := r.client.GetBytes(ctx, r.url, map[string]string{
		"User-Agent": r.userAgent,
		"Accept":     "application/rss+xml, application/xml;q=0.9, */*;q=0.8",
	})
	metrics.ObserveExternal("energy_rss", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, apperrors.NewNewsFetchFailedError(err)
	}

	items, err := ParseRSS(body, r.limit)
	if err != nil {
		return nil, apperrors.NewNewsFetchFailedError(err)
	}
	return &models.NewsFeed{Source: r.source, Items: items}, nil
}

// ParseRSS decodes an RSS 2.0 document and returns at most limit items (all when limit <= 0).
func ParseRSS(data []byte, limit int) ([]models.NewsItem, error) {
	var doc feeds.RssFeedXml
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	dec.Strict = false
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode rss: %w", err)
	}

	items := []models.NewsItem{}
	if doc.Channel == nil {
		return items, nil
	}
	for _, it := range doc.Channel.Items {
		if limit > 0 && len(items) >= limit {
			break
		}
		items = append(items, models.NewsItem{
			Title:     strings.TrimSpace(it.Title),
			Link:      strings.TrimSpace(it.Link),
			Published: strings.TrimSpace(it.PubDate),
		})
	}
	return items, nil
}
