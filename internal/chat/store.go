// Package chat keeps bounded per-session message history and answers chat turns.
package chat

import (
	"context"
	"sync"

	"energy-ai-agent/internal/models"
)

// Store holds the most recent messages of each session, oldest first.
type Store interface {
	History(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	// Append adds msgs and returns the session length after eviction.
	Append(ctx context.Context, sessionID string, msgs ...models.ChatMessage) (int, error)
	Clear(ctx context.Context, sessionID string) error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	max      int
	sessions map[string][]models.ChatMessage
}

func NewMemoryStore(maxMessages int) *MemoryStore {
	return &MemoryStore{max: maxMessages, sessions: make(map[string][]models.ChatMessage)}
}

func (s *MemoryStore) History(_ context.Context, sessionID string) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChatMessage(nil), s.sessions[sessionID]...), nil
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, msgs ...models.ChatMessage) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.sessions[sessionID], msgs...)
	if s.max > 0 && len(history) > s.max {
		// copy so the evicted prefix can be collected
		history = append([]models.ChatMessage(nil), history[len(history)-s.max:]...)
	}
	s.sessions[sessionID] = history
	return len(history), nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
