// internal/workers/reservation/select-venue/handler.go
package selectvenue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	apperrors "energy-ai-agent/internal/common/errors"
	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/common/metrics"
	"energy-ai-agent/internal/models"

	"github.com/agnivade/levenshtein"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "select-venue"
)

type Handler struct {
	config     *Config
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
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
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, "VALIDATION_FAILED").Inc()
		h.errHandler.HandleJobError(ctx, client, job, apperrors.NewValidationError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output := h.execute(&input)
	h.completeJob(client, job, output)
}

func (h *Handler) execute(input *Input) *Output {
	venue, score := Pick(input.Restaurant, input.Candidates)
	if venue == nil {
		h.logger.Info("no venue selected", map[string]interface{}{
			"candidates": len(input.Candidates),
		})
		return &Output{}
	}

	h.logger.Info("venue selected", map[string]interface{}{
		"name":      venue.Name,
		"placeId":   venue.PlaceID,
		"requested": input.Restaurant,
		"score":     score,
	})
	return &Output{Selected: true, Restaurant: venue, Score: score}
}

// Pick chooses one candidate. A non-empty name selects the closest name by similarity ratio;
// otherwise the best (rating, review count) wins. Ties keep input order. The returned score is
// the similarity ratio, or the rating when no name was given.
func Pick(name string, candidates []models.Venue) (*models.Venue, float64) {
	if len(candidates) == 0 {
		return nil, 0
	}

	type scored struct {
		venue   models.Venue
		primary float64
		reviews int
	}
	ranked := make([]scored, len(candidates))

	want := strings.ToLower(strings.TrimSpace(name))
	for i, c := range candidates {
		if want != "" {
			ranked[i] = scored{venue: c, primary: Similarity(want, strings.ToLower(c.Name))}
		} else {
			ranked[i] = scored{venue: c, primary: c.RatingValue(), reviews: c.ReviewCount()}
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].primary != ranked[j].primary {
			return ranked[i].primary > ranked[j].primary
		}
		return ranked[i].reviews > ranked[j].reviews
	})

	best := ranked[0].venue
	return &best, ranked[0].primary
}

// Similarity is 1 - levenshtein(a, b)/max(len(a), len(b)) over runes; two empty strings are
// identical.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
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

func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	return h.execute(input), nil
}
