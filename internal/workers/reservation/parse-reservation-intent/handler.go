// internal/workers/reservation/parse-reservation-intent/handler.go
package parsereservationintent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "energy-ai-agent/internal/common/errors"
	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/common/metrics"
	"energy-ai-agent/internal/common/validation"
	"energy-ai-agent/internal/llm"
	"energy-ai-agent/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "parse-reservation-intent"

	defaultPartySize = 2
	defaultTime      = "19:00"
	notesFallbackLen = 200
)

var (
	ErrIntentParsingFailed = errors.New("INTENT_PARSING_FAILED")
	ErrIntentAPITimeout    = errors.New("INTENT_API_TIMEOUT")
)

type Handler struct {
	config     *Config
	llm        llm.Client
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
	now        func() time.Time
}

func NewHandler(config *Config, client llm.Client, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		llm:        client,
		errHandler: apperrors.NewErrorHandler(l),
		logger:     l,
		now:        time.Now,
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
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, codeOf(err)).Inc()
		h.errHandler.HandleJobError(ctx, client, job, toStandardError(err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	now := h.now().In(h.config.Location)

	if h.config.DryRun || !h.llm.Enabled() {
		return &Output{Plan: h.cannedPlan(now)}, nil
	}

	messages := []models.ChatMessage{
		{Role: "system", Content: systemPrompt(now, h.config.DefaultCity)},
		{Role: "user", Content: userPrompt(input.Text)},
	}

	var raw string
	var lastErr error

	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrIntentAPITimeout
			}
		}

		raw, lastErr = h.llm.Chat(ctx, llm.ChatRequest{Messages: messages, Temperature: 0.2})
		if ctx.Err() != nil || errors.Is(lastErr, context.DeadlineExceeded) {
			return nil, ErrIntentAPITimeout
		}
		if lastErr == nil {
			break
		}
		h.logger.Warn("intent model call failed", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   lastErr.Error(),
		})
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntentParsingFailed, lastErr)
	}

	plan := h.planFromModel(raw, now)

	h.logger.Info("intent parsed", map[string]interface{}{
		"cuisine":   plan.Cuisine,
		"datetime":  plan.Datetime,
		"partySize": plan.PartySize,
		"location":  plan.Location,
	})

	return &Output{Plan: plan}, nil
}

func (h *Handler) cannedPlan(now time.Time) models.ReservationPlan {
	return models.ReservationPlan{
		Cuisine:   "拉麵",
		Datetime:  now.Format("2006-01-02") + " " + defaultTime,
		PartySize: defaultPartySize,
		Location:  h.config.DefaultCity,
	}
}

// planFromModel turns raw model output into a plan, salvaging malformed JSON and falling back
// to defaults with the head of the model output kept in notes.
func (h *Handler) planFromModel(raw string, now time.Time) models.ReservationPlan {
	obj, ok := salvageJSON(raw)
	if !ok {
		h.logger.Warn("intent output is not JSON, using defaults", map[string]interface{}{
			"output": truncateRunes(raw, 200),
		})
		obj = map[string]interface{}{
			"cuisine":    "",
			"datetime":   "",
			"party_size": defaultPartySize,
			"location":   h.config.DefaultCity,
			"restaurant": "",
			"notes":      truncateRunes(raw, notesFallbackLen),
		}
	}

	h.coerce(obj)

	plan := models.ReservationPlan{
		Cuisine:    stringField(obj, "cuisine"),
		Datetime:   stringField(obj, "datetime"),
		Location:   stringField(obj, "location"),
		Restaurant: stringField(obj, "restaurant"),
		Notes:      stringField(obj, "notes"),
	}
	if n, ok := obj["party_size"].(int); ok {
		plan.PartySize = n
	}

	if plan.Location == "" {
		plan.Location = h.config.DefaultCity
	}
	if plan.PartySize <= 0 {
		plan.PartySize = defaultPartySize
	}
	if plan.Datetime == "" {
		plan.Datetime = now.Format("2006-01-02") + " " + defaultTime
	}
	return plan
}

// coerce validates obj against the plan schema and repairs or resets the fields that fail.
func (h *Handler) coerce(obj map[string]interface{}) {
	obj["party_size"] = normalizePartySize(obj["party_size"])
	for _, key := range []string{"cuisine", "datetime", "location", "restaurant", "notes"} {
		obj[key] = normalizeString(obj[key])
	}
	obj["datetime"] = normalizeDatetime(obj["datetime"].(string))

	result, err := validation.Validate(validation.ReservationPlanSchema, obj)
	if err != nil {
		h.logger.Warn("plan validation unavailable", map[string]interface{}{"error": err.Error()})
		return
	}
	if result.Valid {
		return
	}

	h.logger.Warn("plan failed validation, resetting fields", map[string]interface{}{
		"errors": result.GetErrorMessages(),
	})
	for _, e := range result.Errors {
		switch e.Field {
		case "party_size":
			obj["party_size"] = defaultPartySize
		case "datetime":
			obj["datetime"] = ""
		default:
			if _, ok := obj[e.Field]; ok {
				obj[e.Field] = ""
			}
		}
	}
}

func normalizePartySize(v interface{}) interface{} {
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) {
			return int(n)
		}
		return n
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
		return n
	case nil:
		return 0
	default:
		return v
	}
}

func normalizeString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

var datetimeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04",
}

// normalizeDatetime rewrites common near-miss formats to "YYYY-MM-DD HH:MM"; anything else is
// left for schema validation to reject.
func normalizeDatetime(s string) string {
	if s == "" {
		return s
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02 15:04")
		}
	}
	return s
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return s
}

func codeOf(err error) string {
	if errors.Is(err, ErrIntentAPITimeout) {
		return "INTENT_API_TIMEOUT"
	}
	if errors.Is(err, ErrIntentParsingFailed) {
		return "INTENT_PARSING_FAILED"
	}
	return "UNKNOWN_ERROR"
}

func toStandardError(err error) error {
	switch {
	case errors.Is(err, ErrIntentAPITimeout):
		return apperrors.NewIntentAPITimeoutError()
	case errors.Is(err, ErrIntentParsingFailed):
		return apperrors.NewIntentParsingFailedError(err)
	default:
		return err
	}
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

// Execute runs the parser outside of a Zeebe job, as the HTTP façade does.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
