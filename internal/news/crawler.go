package news

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	apphttp "energy-ai-agent/internal/common/http"
	"energy-ai-agent/internal/common/metrics"
	"energy-ai-agent/internal/models"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Crawler scrapes the announcements listing page.
type Crawler struct {
	client    *apphttp.Client
	pageURL   string
	userAgent string
	limit     int
}

func NewCrawler(client *apphttp.Client, pageURL, userAgent string, limit int) *Crawler {
	return &Crawler{client: client, pageURL: pageURL, userAgent: userAgent, limit: limit}
}

func (c *Crawler) Crawl(ctx context.Context) ([]models.NewsItem, error) {
	start := time.Now()
	body, err := c.client.GetBytes(ctx, c.pageURL, map[string]string{
		"User-Agent": c.userAgent,
		"Accept":     "text/html",
	})
	metrics.ObserveExternal("energy_news_page", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("fetch news page: %w", err)
	}
	return ExtractAnnouncements(body, c.pageURL, c.limit)
}

// ExtractAnnouncements returns the anchors pointing at News.aspx detail pages that carry a
// menu_id and non-empty text, resolved against pageURL, in document order.
func ExtractAnnouncements(page []byte, pageURL string, limit int) ([]models.NewsItem, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	r, err := charset.NewReader(bytes.NewReader(page), "text/html")
	if err != nil {
		return nil, fmt.Errorf("detect page charset: %w", err)
	}
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse news page: %w", err)
	}

	items := []models.NewsItem{}
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "a" {
			if item, ok := announcement(n, base); ok {
				items = append(items, item)
				if limit > 0 && len(items) >= limit {
					return false
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if !walk(child) {
				return false
			}
		}
		return true
	}
	walk(doc)
	return items, nil
}

func announcement(a *html.Node, base *url.URL) (models.NewsItem, bool) {
	var href string
	for _, attr := range a.Attr {
		if attr.Key == "href" {
			href = strings.TrimSpace(attr.Val)
		}
	}
	if !strings.Contains(href, "News.aspx") {
		return models.NewsItem{}, false
	}

	title := strings.Join(strings.Fields(textOf(a)), " ")
	if title == "" {
		return models.NewsItem{}, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return models.NewsItem{}, false
	}
	link := base.ResolveReference(ref).String()
	if !strings.Contains(link, "menu_id") {
		return models.NewsItem{}, false
	}
	return models.NewsItem{Title: title, Link: link}, true
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return b.String()
}
