// internal/models/news.go
package models

type NewsItem struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Published string `json:"published,omitempty"`
}

// NewsCache is the on-disk snapshot written by every sync.
type NewsCache struct {
	Source   string     `json:"source"`
	SyncedAt string     `json:"synced_at"`
	Items    []NewsItem `json:"items"`
}

type NewsFeed struct {
	Source string     `json:"source"`
	Items  []NewsItem `json:"items"`
}

// NewsHit is one Elasticsearch match from the news index.
type NewsHit struct {
	NewsItem
	Source   string  `json:"source"`
	SyncedAt string  `json:"synced_at"`
	Score    float64 `json:"score"`
}
