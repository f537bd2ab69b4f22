// Package selection persists the venue the user picked in the UI.
package selection

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	apperrors "energy-ai-agent/internal/common/errors"
	"energy-ai-agent/internal/models"

	"github.com/google/renameio/v2"
)

var ErrNameRequired = errors.New("name is required")

type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	if path == "" {
		path = "selected.json"
	}
	return &Store{path: path}
}

// Select records name as the current selection, replacing the previous one.
func (s *Store) Select(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	data, err := json.Marshal(models.Selection{Selection: &name})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return apperrors.NewStateWriteFailedError(err)
	}
	return nil
}

// Current returns the stored selection; Selection is nil when nothing was picked yet.
func (s *Store) Current() (*models.Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &models.Selection{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read selection: %w", err)
	}
	var sel models.Selection
	if err := json.Unmarshal(data, &sel); err != nil {
		return nil, fmt.Errorf("decode selection: %w", err)
	}
	return &sel, nil
}
