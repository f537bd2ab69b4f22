// internal/workers/assistant/run-tool-agent/tools.go
package runtoolagent

import (
	"context"
	"fmt"
	"strings"

	"energy-ai-agent/internal/models"

	"github.com/mitchellh/mapstructure"
)

// NewsReader returns the last synced news snapshot.
type NewsReader interface {
	Read() (*models.NewsCache, error)
}

// NewsSearcher runs a full-text query over indexed news.
type NewsSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.NewsHit, error)
}

type toolFunc func(ctx context.Context, args map[string]interface{}) (string, error)

func (h *Handler) tools() map[string]toolFunc {
	tools := map[string]toolFunc{
		"current_time": h.toolCurrentTime,
	}
	if h.search != nil {
		tools["search"] = h.toolSearch
	}
	if h.news != nil {
		tools["energy_news"] = h.toolEnergyNews
	}
	if h.newsSearch != nil {
		tools["news_search"] = h.toolNewsSearch
	}
	return tools
}

func decodeArgs(args map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}

func (h *Handler) toolSearch(ctx context.Context, args map[string]interface{}) (string, error) {
	var a searchArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", fmt.Errorf("decode search args: %w", err)
	}
	if a.MaxResults <= 0 {
		a.MaxResults = h.config.MaxResults
	}

	results, err := h.search.Search(ctx, a.Query, a.MaxResults)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("- %s\n  %s", r.Title, r.Link))
	}
	if len(lines) == 0 {
		return noResultsText, nil
	}
	return strings.Join(lines, "\n"), nil
}

func (h *Handler) toolEnergyNews(_ context.Context, _ map[string]interface{}) (string, error) {
	cache, err := h.news.Read()
	if err != nil {
		return "", err
	}
	if cache == nil || len(cache.Items) == 0 {
		return noResultsText, nil
	}

	var b strings.Builder
	if cache.Source != "" {
		fmt.Fprintf(&b, "來源：%s（更新於 %s）\n", cache.Source, cache.SyncedAt)
	}
	for i, item := range cache.Items {
		if h.config.NewsLimit > 0 && i >= h.config.NewsLimit {
			break
		}
		fmt.Fprintf(&b, "- %s\n  %s\n", item.Title, item.Link)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (h *Handler) toolNewsSearch(ctx context.Context, args map[string]interface{}) (string, error) {
	var a newsSearchArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", fmt.Errorf("decode news_search args: %w", err)
	}
	if a.Limit <= 0 {
		a.Limit = h.config.NewsLimit
	}

	hits, err := h.newsSearch.Search(ctx, a.Query, a.Limit)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return noResultsText, nil
	}
	lines := make([]string, 0, len(hits))
	for _, hit := range hits {
		lines = append(lines, fmt.Sprintf("- %s\n  %s", hit.Title, hit.Link))
	}
	return strings.Join(lines, "\n"), nil
}

func (h *Handler) toolCurrentTime(_ context.Context, _ map[string]interface{}) (string, error) {
	now := h.now().In(h.config.Location)
	return now.Format("2006-01-02 15:04:05 MST (Mon)"), nil
}
