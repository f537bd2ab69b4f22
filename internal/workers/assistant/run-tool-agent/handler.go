// internal/workers/assistant/run-tool-agent/handler.go
package runtoolagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "energy-ai-agent/internal/common/errors"
	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/common/metrics"
	"energy-ai-agent/internal/llm"
	"energy-ai-agent/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "run-tool-agent"
)

var (
	ErrLLMTimeout       = errors.New("LLM_TIMEOUT")
	ErrLLMFailed        = errors.New("LLM_SYNTHESIS_FAILED")
	ErrQuestionRequired = errors.New("VALIDATION_FAILED")
)

type Handler struct {
	config     *Config
	llm        llm.Client
	search     WebSearcher
	news       NewsReader
	newsSearch NewsSearcher
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
	now        func() time.Time
}

type Option func(*Handler)

func WithWebSearch(s WebSearcher) Option   { return func(h *Handler) { h.search = s } }
func WithNews(r NewsReader) Option         { return func(h *Handler) { h.news = r } }
func WithNewsSearch(s NewsSearcher) Option { return func(h *Handler) { h.newsSearch = s } }

// NewHandler builds the agent. Tools whose backend is not supplied are not offered to the
// model's dispatcher; current_time is always available.
func NewHandler(config *Config, client llm.Client, log logger.Logger, opts ...Option) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	h := &Handler{
		config:     config,
		llm:        client,
		errHandler: apperrors.NewErrorHandler(l),
		logger:     l,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errHandler.HandleJobError(ctx, client, job, apperrors.NewValidationError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		var stdErr *apperrors.StandardError
		switch {
		case errors.Is(err, ErrQuestionRequired):
			stdErr = apperrors.NewValidationError(err.Error())
		case errors.Is(err, ErrLLMTimeout):
			stdErr = apperrors.NewLLMTimeoutError()
		case llm.IsRateLimit(err):
			stdErr = apperrors.NewLLMRateLimitedError(err)
		default:
			stdErr = apperrors.NewLLMSynthesisFailedError(err)
		}
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
		h.errHandler.HandleJobError(ctx, client, job, stdErr)
		return
	}

	h.completeJob(client, job, output)
}

// execute runs at most two model calls: the first either answers or names a tool, the
// second turns the tool result into the final answer.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", ErrQuestionRequired)
	}
	if !h.llm.Enabled() {
		return &Output{Answer: offlineAnswer}, nil
	}

	messages := []models.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: question},
	}
	raw, err := h.ask(ctx, messages)
	if err != nil {
		return nil, err
	}

	reply, ok := parseReply(raw)
	if !ok {
		return &Output{Answer: raw}, nil
	}
	if reply.FinalAnswer != nil {
		return &Output{Answer: *reply.FinalAnswer}, nil
	}

	tool, found := h.tools()[reply.Tool]
	if reply.Tool == "" || !found {
		h.logger.Warn("model requested unknown tool", map[string]interface{}{
			"tool": reply.Tool,
		})
		return &Output{Answer: unknownToolAnswer}, nil
	}

	start := time.Now()
	result, err := tool(ctx, reply.Args)
	if err != nil {
		h.logger.Warn("tool failed", map[string]interface{}{
			"tool":  reply.Tool,
			"error": err.Error(),
		})
		result = toolFailedText
	}
	h.logger.Info("tool dispatched", map[string]interface{}{
		"tool":       reply.Tool,
		"durationMs": time.Since(start).Milliseconds(),
	})

	messages = append(messages,
		models.ChatMessage{Role: "assistant", Content: raw},
		models.ChatMessage{Role: "user", Content: fmt.Sprintf(toolResultPrompt, result)},
	)
	final, err := h.ask(ctx, messages)
	if err != nil {
		return nil, err
	}
	if r, ok := parseReply(final); ok && r.FinalAnswer != nil {
		final = *r.FinalAnswer
	}
	return &Output{Answer: final, Tool: reply.Tool}, nil
}

func (h *Handler) ask(ctx context.Context, messages []models.ChatMessage) (string, error) {
	raw, err := h.llm.Chat(ctx, llm.ChatRequest{Messages: messages, Temperature: h.config.Temperature})
	if err != nil {
		if ctx.Err() != nil || llm.IsTimeout(err) {
			return "", fmt.Errorf("%w: %v", ErrLLMTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrLLMFailed, err)
	}
	return strings.TrimSpace(raw), nil
}

// parseReply decodes a JSON object reply, tolerating a surrounding markdown code fence.
func parseReply(raw string) (*modelReply, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var reply modelReply
	if err := json.Unmarshal([]byte(s), &reply); err != nil {
		return nil, false
	}
	return &reply, true
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
