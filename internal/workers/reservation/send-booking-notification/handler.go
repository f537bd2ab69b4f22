// internal/workers/reservation/send-booking-notification/handler.go
package sendbookingnotification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	appaws "energy-ai-agent/internal/common/aws"
	apperrors "energy-ai-agent/internal/common/errors"
	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/common/metrics"
	"energy-ai-agent/internal/common/validation"
	"energy-ai-agent/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "send-booking-notification"
)

var (
	ErrNotificationSendFailed = errors.New("NOTIFICATION_SEND_FAILED")
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Handler struct {
	config     *Config
	logger     logger.Logger
	errHandler *apperrors.ErrorHandler
	sesClient  SESService
	snsClient  SNSService
}

// NewHandler accepts nil clients; the matching channel is then reported as disabled.
func NewHandler(config *Config, sesClient SESService, snsClient SNSService, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		logger:     l,
		errHandler: apperrors.NewErrorHandler(l),
		sesClient:  sesClient,
		snsClient:  snsClient,
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
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, "NOTIFICATION_SEND_FAILED").Inc()
		h.errHandler.HandleJobError(ctx, client, job, apperrors.NewNotificationSendFailedError(input.Status, err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	subject, body := renderBooking(input)
	sentAt := time.Now().UTC().Format(time.RFC3339)
	out := &Output{
		NotificationID: uuid.New().String(),
		Status:         StatusDisabled,
		SentAt:         sentAt,
	}

	attempted, failed := 0, 0
	var lastErr error

	if email := h.emailRecipient(input); email != "" {
		attempted++
		status := StatusSent
		if err := h.sendEmail(ctx, email, subject, body); err != nil {
			h.logger.Error("email send failed", map[string]interface{}{
				"error": err.Error(),
				"email": email,
			})
			status, lastErr = StatusFailed, err
			failed++
		}
		out.Channels = append(out.Channels, h.record(input.BookingID, ChannelEmail, status, sentAt))
	}

	if phone := h.smsRecipient(input); phone != "" {
		attempted++
		status := StatusSent
		if err := h.sendSMS(ctx, phone, subject+"\n"+body); err != nil {
			h.logger.Error("SMS send failed", map[string]interface{}{
				"error": err.Error(),
				"phone": phone,
			})
			status, lastErr = StatusFailed, err
			failed++
		}
		out.Channels = append(out.Channels, h.record(input.BookingID, ChannelSMS, status, sentAt))
	}

	switch {
	case attempted == 0:
		h.logger.Info("notifications disabled", map[string]interface{}{"bookingId": input.BookingID})
	case failed == attempted:
		return nil, fmt.Errorf("%w: %v", ErrNotificationSendFailed, lastErr)
	case failed > 0:
		out.Status = StatusFailed
	default:
		out.Status = StatusSent
	}
	return out, nil
}

func (h *Handler) record(bookingID, channel, status, sentAt string) models.Notification {
	n := models.Notification{
		ID:        uuid.New().String(),
		BookingID: bookingID,
		Channel:   channel,
		Status:    status,
	}
	if status == StatusSent {
		n.SentAt = sentAt
	}
	return n
}

func (h *Handler) emailRecipient(input *Input) string {
	if !h.config.EmailEnabled || h.sesClient == nil {
		return ""
	}
	to := strings.TrimSpace(input.Email)
	if to == "" {
		to = h.config.EmailTo
	}
	if to == "" {
		return ""
	}
	if !validation.ValidateEmail(to) {
		h.logger.Warn("skipping invalid email recipient", map[string]interface{}{"email": to})
		return ""
	}
	return to
}

func (h *Handler) smsRecipient(input *Input) string {
	if !h.config.SMSEnabled || h.snsClient == nil {
		return ""
	}
	to := strings.TrimSpace(input.Phone)
	if to == "" {
		to = h.config.SMSTo
	}
	if to == "" {
		return ""
	}
	if !validation.ValidateE164(to) {
		h.logger.Warn("skipping invalid phone recipient", map[string]interface{}{"phone": to})
		return ""
	}
	return to
}

func (h *Handler) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := h.sesClient.SendEmail(ctx, appaws.TextEmail(h.config.FromEmail, to, subject, body))
	return err
}

func (h *Handler) sendSMS(ctx context.Context, to, message string) error {
	_, err := h.snsClient.Publish(ctx, appaws.TransactionalSMS(to, message))
	return err
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

var statusLabels = map[string]string{
	models.StatusRequestedViaCall: "已致電餐廳詢問訂位",
	models.StatusBridging:         "正在為您轉接餐廳",
	models.StatusNeedsManualClick: "請點擊連結完成訂位",
	models.StatusLink:             "請點擊連結完成訂位",
	models.StatusNoPhoneLink:      "餐廳沒有電話，請使用連結",
	models.StatusUnsupported:      "此餐廳不支援線上或電話訂位",
	models.StatusNoCandidates:     "找不到符合條件的餐廳",
	models.StatusNoSelection:      "未能選出餐廳",
}

const bodyTemplate = `{{label}}
餐廳：{{restaurant}}
時間：{{datetime}}，{{party_size}} 位
{{url}}
{{message}}`

func renderBooking(input *Input) (subject, body string) {
	label, ok := statusLabels[input.Status]
	if !ok {
		label = input.Status
	}
	data := map[string]interface{}{
		"label":      label,
		"datetime":   input.Plan.Datetime,
		"party_size": input.Plan.PartySize,
		"url":        input.URL,
		"message":    input.Message,
	}
	if input.Restaurant != nil {
		data["restaurant"] = input.Restaurant.Name
	} else if input.Plan.Restaurant != "" {
		data["restaurant"] = input.Plan.Restaurant
	}

	subject = "訂位通知：" + label
	body = renderTemplate(bodyTemplate, data)
	return subject, body
}

// renderTemplate fills {{key}} placeholders, drops unknown ones and removes lines left empty.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		switch t := v.(type) {
		case string:
			value = t
		case nil:
		default:
			value = fmt.Sprintf("%v", t)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}

	lines := strings.Split(result, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
