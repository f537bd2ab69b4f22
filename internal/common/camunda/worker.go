// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"energy-ai-agent/internal/common/config"
	"energy-ai-agent/internal/common/metrics"
	"energy-ai-agent/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// JobHandlerFunc is the signature every worker's Handle method has. Handlers complete or fail
// the job themselves.
type JobHandlerFunc func(client worker.JobClient, job entities.Job)

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   *zap.Logger
	taskType string
}

// Instrument wraps handler with the active-jobs gauge, a duration histogram and a span.
func Instrument(taskType string, handler JobHandlerFunc, obs *observability.Observability) JobHandlerFunc {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		active := metrics.WorkerJobsActive.WithLabelValues(taskType)
		active.Inc()
		defer active.Dec()

		ctx := context.Background()
		if obs != nil {
			var span trace.Span
			ctx, span = obs.StartSpan(ctx, "job "+taskType, jobAttributes(taskType, job)...)
			defer span.End()
		}

		handler(client, job)

		elapsed := time.Since(start)
		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
		if obs != nil {
			obs.RecordJobDuration(ctx, taskType, elapsed)
			obs.RecordJobProcessed(ctx, taskType, "handled")
		}
	}
}

// NewWorker opens a job worker for taskType using the per-worker settings.
func NewWorker(
	client zbc.Client,
	taskType string,
	wcfg config.WorkerConfig,
	handler JobHandlerFunc,
	obs *observability.Observability,
	logger *zap.Logger,
) *CamundaWorker {
	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(Instrument(taskType, handler, obs))).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
	)

	return &CamundaWorker{
		worker:   jobWorker,
		logger:   logger,
		taskType: taskType,
	}
}

func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", zap.String("taskType", w.taskType))
	w.worker.Close()
	w.worker.AwaitClose()
}

func jobAttributes(taskType string, job entities.Job) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("zeebe.task_type", taskType),
		attribute.Int64("zeebe.job_key", job.Key),
		attribute.Int64("zeebe.process_instance_key", job.ProcessInstanceKey),
	}
}
