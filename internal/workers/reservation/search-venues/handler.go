// internal/workers/reservation/search-venues/handler.go
package searchvenues

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "energy-ai-agent/internal/common/errors"
	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "search-venues"
)

var (
	ErrPlacesSearchFailed = errors.New("PLACES_SEARCH_FAILED")
	ErrPlacesTimeout      = errors.New("PLACES_TIMEOUT")
)

type Handler struct {
	config     *Config
	places     *PlacesService
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

// NewHandler wires the handler. cache may be nil to disable result caching.
func NewHandler(config *Config, cache redis.UniversalClient, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		places:     NewPlacesService(config, cache, l),
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
		code := "PLACES_SEARCH_FAILED"
		stdErr := apperrors.NewPlacesSearchFailedError(err)
		if errors.Is(err, ErrPlacesTimeout) {
			code = "PLACES_TIMEOUT"
			stdErr = apperrors.NewPlacesTimeoutError()
		}
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
		h.errHandler.HandleJobError(ctx, client, job, stdErr)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	venues, err := h.places.Search(ctx, input)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrPlacesTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrPlacesSearchFailed, err)
	}

	h.logger.Info("venues found", map[string]interface{}{
		"query":    input.Query,
		"location": input.Location,
		"count":    len(venues),
	})

	return &Output{Candidates: venues}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
