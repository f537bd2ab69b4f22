// internal/workers/reservation/place-reservation-call/handler.go
package placereservationcall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "energy-ai-agent/internal/common/errors"
	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/common/metrics"
	"energy-ai-agent/internal/models"
	"energy-ai-agent/internal/telephony"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "place-reservation-call"

	mockCallSID   = "mock-call-sid"
	mockBridgeSID = "mock-bridge-sid"
)

var (
	ErrCallPlacementFailed = errors.New("CALL_PLACEMENT_FAILED")
	ErrMissingRestaurant   = errors.New("VALIDATION_FAILED")
)

// Outcome messages shown to the user.
const (
	MessageRequestedViaCall = "已代為致電餐廳並唸出訂位資訊（是否成功仍以餐廳回覆為準）"
	MessageNeedsManualClick = "此餐廳可能提供線上資訊/訂位，請點擊查看"
	MessageUnsupported      = "找不到電話或線上連結（OSM 可能沒有這些資料）"
)

type Handler struct {
	config     *Config
	caller     telephony.Caller
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

// NewHandler wires the handler. caller is only used when config.LiveCalls is set.
func NewHandler(config *Config, caller telephony.Caller, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		caller:     caller,
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
		var stdErr error = apperrors.NewCallPlacementFailedError(err)
		code := "CALL_PLACEMENT_FAILED"
		if errors.Is(err, ErrMissingRestaurant) {
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
	if input.Restaurant == nil {
		return nil, fmt.Errorf("%w: restaurant is required", ErrMissingRestaurant)
	}
	rest := *input.Restaurant

	mode := input.Mode
	if mode == "" {
		mode = models.ModeCall
	}

	if mode == ModeAuto {
		return h.auto(ctx, input.Plan, rest)
	}

	if mode == models.ModeLinkOnly {
		return &Output{Status: models.StatusLink, URL: fallbackLink(rest)}, nil
	}

	phone := NormalizePhone(rest.Phone, h.config.CountryCode)
	if phone == "" {
		return &Output{Status: models.StatusNoPhoneLink, URL: fallbackLink(rest)}, nil
	}

	if mode == models.ModeCallAndBridge && h.config.CallbackNumber != "" {
		sid, err := h.bridge(ctx, phone)
		if err != nil {
			return nil, err
		}
		return &Output{Status: models.StatusBridging, SID: sid}, nil
	}

	sid, err := h.callRestaurant(ctx, phone, CallScript(input.Plan))
	if err != nil {
		return nil, err
	}
	return &Output{Status: models.StatusRequestedViaCall, SID: sid}, nil
}

func (h *Handler) auto(ctx context.Context, plan models.ReservationPlan, rest models.Venue) (*Output, error) {
	if phone := NormalizePhone(rest.Phone, h.config.CountryCode); phone != "" {
		sid, err := h.callRestaurant(ctx, phone, CallScript(plan))
		if err != nil {
			return nil, err
		}
		return &Output{Status: models.StatusRequestedViaCall, SID: sid, Message: MessageRequestedViaCall}, nil
	}
	if link := ReservationLink(rest); link != "" {
		return &Output{Status: models.StatusNeedsManualClick, URL: link, Message: MessageNeedsManualClick}, nil
	}
	return &Output{Status: models.StatusUnsupported, Message: MessageUnsupported}, nil
}

func (h *Handler) callRestaurant(ctx context.Context, phone, script string) (string, error) {
	if !h.config.LiveCalls || h.caller == nil {
		h.logger.Info("dry run, restaurant call skipped", map[string]interface{}{"to": phone, "script": script})
		return mockCallSID, nil
	}
	sid, err := h.caller.Call(ctx, phone, telephony.SayTwiML(h.config.Language, script).String())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCallPlacementFailed, err)
	}
	h.logger.Info("restaurant call placed", map[string]interface{}{"to": phone, "sid": sid})
	return sid, nil
}

func (h *Handler) bridge(ctx context.Context, restaurantPhone string) (string, error) {
	if !h.config.LiveCalls || h.caller == nil {
		h.logger.Info("dry run, bridge call skipped", map[string]interface{}{"to": restaurantPhone})
		return mockBridgeSID, nil
	}
	twiml := telephony.BridgeTwiML(h.config.Language, h.config.PublicBaseURL, restaurantPhone).String()
	sid, err := h.caller.Call(ctx, h.config.CallbackNumber, twiml)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCallPlacementFailed, err)
	}
	h.logger.Info("bridge call placed", map[string]interface{}{"restaurant": restaurantPhone, "sid": sid})
	return sid, nil
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
