package llm

import (
	"context"
	"sync"
)

// Fake is a scripted Client for tests and dry-run wiring.
type Fake struct {
	mu        sync.Mutex
	Disabled  bool
	Model     string
	ChatFunc  func(ctx context.Context, req ChatRequest) (string, error)
	EmbedFunc func(ctx context.Context, inputs []string) ([][]float32, error)
	Requests  []ChatRequest
}

func (f *Fake) Enabled() bool { return !f.Disabled }

func (f *Fake) ChatModel() string {
	if f.Model == "" {
		return "fake-model"
	}
	return f.Model
}

func (f *Fake) Chat(ctx context.Context, req ChatRequest) (string, error) {
	f.mu.Lock()
	f.Requests = append(f.Requests, req)
	f.mu.Unlock()
	if f.Disabled {
		return "", ErrNotConfigured
	}
	if f.ChatFunc == nil {
		return "", nil
	}
	return f.ChatFunc(ctx, req)
}

func (f *Fake) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if f.Disabled {
		return nil, ErrNotConfigured
	}
	if f.EmbedFunc == nil {
		out := make([][]float32, len(inputs))
		for i := range inputs {
			out[i] = []float32{1}
		}
		return out, nil
	}
	return f.EmbedFunc(ctx, inputs)
}

// Calls returns a copy of the recorded chat requests.
func (f *Fake) Calls() []ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ChatRequest(nil), f.Requests...)
}
