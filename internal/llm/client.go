// Package llm wraps the OpenAI-compatible chat and embedding endpoints used by the intent
// parser, the agent, chat and the RAG pipelines.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"energy-ai-agent/internal/common/config"
	"energy-ai-agent/internal/common/metrics"
	"energy-ai-agent/internal/models"

	"github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned by every call when no API key is set.
var ErrNotConfigured = errors.New("llm api key not configured")

type ChatRequest struct {
	Model       string
	Messages    []models.ChatMessage
	Temperature float32
	MaxTokens   int
	JSONOutput  bool
}

// Client is the subset of the model API the application uses.
type Client interface {
	Enabled() bool
	ChatModel() string
	Chat(ctx context.Context, req ChatRequest) (string, error)
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type OpenAIClient struct {
	api         *openai.Client
	enabled     bool
	chatModel   string
	embedModel  string
	temperature float32
}

func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: config.GetDuration(cfg.Timeout)}

	return &OpenAIClient{
		api:         openai.NewClientWithConfig(oc),
		enabled:     cfg.APIKey != "",
		chatModel:   cfg.ChatModel,
		embedModel:  cfg.EmbedModel,
		temperature: cfg.Temperature,
	}
}

func (c *OpenAIClient) Enabled() bool     { return c.enabled }
func (c *OpenAIClient) ChatModel() string { return c.chatModel }

// Chat returns the trimmed content of the first choice.
func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if !c.enabled {
		return "", ErrNotConfigured
	}

	model := req.Model
	if model == "" {
		model = c.chatModel
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	creq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONOutput {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, creq)
	metrics.ObserveExternal("openai_chat", time.Since(start).Seconds(), err)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Embed returns one vector per input, in input order.
func (c *OpenAIClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if !c.enabled {
		return nil, ErrNotConfigured
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	start := time.Now()
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.EmbeddingModel(c.embedModel),
	})
	metrics.ObserveExternal("openai_embeddings", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(resp.Data), len(inputs))
	}

	out := make([][]float32, len(inputs))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		out[idx] = d.Embedding
	}
	return out, nil
}

// IsRateLimit reports whether err is a quota, rate-limit or connection problem on the model API.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "insufficient_quota") || strings.Contains(msg, "rate limit")
}

// IsTimeout reports whether err came from a deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
