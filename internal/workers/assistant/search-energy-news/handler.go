// internal/workers/assistant/search-energy-news/handler.go
package searchenergynews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "energy-ai-agent/internal/common/errors"
	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/common/metrics"
	"energy-ai-agent/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "search-energy-news"
)

var (
	ErrSearchQueryFailed = errors.New("SEARCH_QUERY_FAILED")
	ErrSearchTimeout     = errors.New("SEARCH_TIMEOUT")
)

// Searcher is implemented by news.Index.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.NewsHit, error)
}

type Handler struct {
	config     *Config
	searcher   Searcher
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, searcher Searcher, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		searcher:   searcher,
		errHandler: apperrors.NewErrorHandler(l),
		logger:     l,
	}
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
		stdErr := apperrors.NewSearchQueryFailedError("news", err)
		if errors.Is(err, ErrSearchTimeout) {
			stdErr = apperrors.NewElasticsearchConnectionFailedError(err).WithMetadata("timeout", true)
		}
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
		h.errHandler.HandleJobError(ctx, client, job, stdErr)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = h.config.DefaultLimit
	}
	if h.config.MaxLimit > 0 && limit > h.config.MaxLimit {
		limit = h.config.MaxLimit
	}

	hits, err := h.searcher.Search(ctx, strings.TrimSpace(input.Query), limit)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrSearchTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}
	if hits == nil {
		hits = []models.NewsHit{}
	}

	h.logger.Info("news search completed", map[string]interface{}{
		"query": input.Query,
		"hits":  len(hits),
	})
	return &Output{Hits: hits, TotalHits: len(hits)}, nil
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
