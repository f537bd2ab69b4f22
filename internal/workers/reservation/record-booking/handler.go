// internal/workers/reservation/record-booking/handler.go
package recordbooking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "energy-ai-agent/internal/common/errors"
	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/common/metrics"
	"energy-ai-agent/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "record-booking"
)

var (
	ErrBookingRecordFailed = errors.New("BOOKING_RECORD_FAILED")
	ErrMissingStatus       = errors.New("VALIDATION_FAILED")
)

type Handler struct {
	config     *Config
	store      *Store
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		store:      NewStore(db),
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
		var stdErr error = apperrors.NewBookingRecordFailedError(err)
		code := "BOOKING_RECORD_FAILED"
		if errors.Is(err, ErrMissingStatus) {
			stdErr = apperrors.NewValidationError(err.Error())
			code = "VALIDATION_FAILED"
		}
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
		h.errHandler.HandleJobError(ctx, client, job, stdErr)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Status == "" {
		return nil, fmt.Errorf("%w: status is required", ErrMissingStatus)
	}

	booking := &models.Booking{
		ID:         uuid.New().String(),
		Status:     input.Status,
		Plan:       input.Plan,
		Restaurant: input.Restaurant,
		CallSID:    input.SID,
		URL:        input.URL,
		Message:    input.Message,
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.store.Insert(ctx, booking); err != nil {
		return nil, fmt.Errorf("%w: insert failed: %v", ErrBookingRecordFailed, err)
	}

	h.logger.Info("booking recorded", map[string]interface{}{
		"bookingId": booking.ID,
		"status":    booking.Status,
	})

	return &Output{
		BookingID: booking.ID,
		CreatedAt: booking.CreatedAt.Format(time.RFC3339),
	}, nil
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
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey": job.Key,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// Store exposes the underlying repository for read endpoints.
func (h *Handler) Store() *Store {
	return h.store
}
