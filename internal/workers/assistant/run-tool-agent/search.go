// internal/workers/assistant/run-tool-agent/search.go
package runtoolagent

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	apperrors "energy-ai-agent/internal/common/errors"
	apphttp "energy-ai-agent/internal/common/http"
	"energy-ai-agent/internal/common/metrics"
)

var (
	ErrWebSearchTimeout       = errors.New("WEB_SEARCH_TIMEOUT")
	ErrWebSearchNotConfigured = errors.New("web search api key not configured")
)

// WebSearcher runs a keyword web search.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// GoogleSearch queries the Custom Search JSON API.
type GoogleSearch struct {
	client   *apphttp.Client
	baseURL  string
	apiKey   string
	engineID string
}

func NewGoogleSearch(config *Config) *GoogleSearch {
	return &GoogleSearch{
		client:   apphttp.NewClient(config.SearchTimeout, apphttp.WithRetries(1, 200*time.Millisecond)),
		baseURL:  config.SearchBaseURL,
		apiKey:   config.SearchAPIKey,
		engineID: config.SearchEngine,
	}
}

var spaceRun = regexp.MustCompile(`\s+`)

func (g *GoogleSearch) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if g.apiKey == "" || g.engineID == "" {
		return nil, ErrWebSearchNotConfigured
	}
	if maxResults <= 0 {
		maxResults = 3
	}
	if maxResults > 10 {
		maxResults = 10
	}

	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.engineID)
	params.Set("q", spaceRun.ReplaceAllString(strings.TrimSpace(query), " "))
	params.Set("num", fmt.Sprintf("%d", maxResults))

	var apiResponse struct {
		Items []struct {
			Link    string `json:"link"`
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}

	start := time.Now()
	err := g.client.GetJSON(ctx, g.baseURL, params, &apiResponse)
	metrics.ObserveExternal("web_search", time.Since(start).Seconds(), err)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrWebSearchTimeout, apperrors.NewWebSearchTimeoutError())
		}
		return nil, fmt.Errorf("web search: %w", err)
	}

	seen := make(map[string]bool)
	results := make([]SearchResult, 0, len(apiResponse.Items))
	for _, item := range apiResponse.Items {
		if item.Link == "" || seen[item.Link] {
			continue
		}
		seen[item.Link] = true
		results = append(results, SearchResult{Title: item.Title, Link: item.Link, Snippet: item.Snippet})
		if len(results) == maxResults {
			break
		}
	}
	return results, nil
}
