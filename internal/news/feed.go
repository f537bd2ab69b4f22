package news

import (
	"fmt"
	"time"

	"energy-ai-agent/internal/models"

	"github.com/gorilla/feeds"
)

// RenderRSS re-publishes a cache snapshot as an RSS 2.0 document.
func RenderRSS(snapshot *models.NewsCache, pageURL string) (string, error) {
	updated, err := time.Parse(time.RFC3339, snapshot.SyncedAt)
	if err != nil {
		updated = time.Now()
	}

	feed := &feeds.Feed{
		Title:       snapshot.Source,
		Link:        &feeds.Link{Href: pageURL},
		Description: fmt.Sprintf("%s 最新公告", snapshot.Source),
		Updated:     updated,
	}
	for _, item := range snapshot.Items {
		fi := &feeds.Item{
			Title: item.Title,
			Link:  &feeds.Link{Href: item.Link},
			Id:    item.Link,
		}
		if published, err := time.Parse(time.RFC1123Z, item.Published); err == nil {
			fi.Created = published
		}
		feed.Items = append(feed.Items, fi)
	}

	out, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("render rss: %w", err)
	}
	return out, nil
}
