package news

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"energy-ai-agent/internal/models"

	"github.com/google/renameio/v2"
)

// Cache is the JSON snapshot file shared by the scheduler and the read endpoints. Writes
// replace the file through a rename so readers never see a partial document.
type Cache struct {
	path string
	mu   sync.RWMutex
}

func NewCache(path string) *Cache {
	return &Cache{path: path}
}

func (c *Cache) Path() string { return c.path }

// Read returns the stored snapshot, or an empty one when the file does not exist yet.
func (c *Cache) Read() (*models.NewsCache, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return &models.NewsCache{Items: []models.NewsItem{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read news cache: %w", err)
	}

	var out models.NewsCache
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode news cache: %w", err)
	}
	if out.Items == nil {
		out.Items = []models.NewsItem{}
	}
	return &out, nil
}

func (c *Cache) Write(snapshot *models.NewsCache) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return fmt.Errorf("encode news cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := renameio.WriteFile(c.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write news cache: %w", err)
	}
	return nil
}
