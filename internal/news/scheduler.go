package news

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"energy-ai-agent/internal/common/logger"

	"github.com/hibiken/asynq"
)

// TaskSync is the asynq task type of a news refresh.
const TaskSync = "news:sync"

// Scheduler syncs once immediately and then on every tick until ctx is cancelled.
type Scheduler struct {
	syncer   *Syncer
	interval time.Duration
	logger   logger.Logger
}

func NewScheduler(syncer *Syncer, interval time.Duration, log logger.Logger) *Scheduler {
	return &Scheduler{syncer: syncer, interval: interval, logger: log}
}

func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("news scheduler started", map[string]interface{}{"interval": s.interval.String()})
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("news scheduler stopped", nil)
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	// Errors are logged and counted by the syncer; the next tick retries.
	_, _ = s.syncer.Sync(ctx)
}

// DistributedScheduler runs the refresh as an asynq periodic task so that only one
// instance crawls per interval.
type DistributedScheduler struct {
	syncer   *Syncer
	redis    asynq.RedisClientOpt
	interval time.Duration
	logger   logger.Logger
}

func NewDistributedScheduler(syncer *Syncer, redis asynq.RedisClientOpt, interval time.Duration, log logger.Logger) *DistributedScheduler {
	return &DistributedScheduler{syncer: syncer, redis: redis, interval: interval, logger: log}
}

// HandleSyncTask is the asynq handler for TaskSync.
func (d *DistributedScheduler) HandleSyncTask(ctx context.Context, _ *asynq.Task) error {
	_, err := d.syncer.Sync(ctx)
	return err
}

// taskOptions lets only one instance's tick run per interval when several replicas share Redis.
func (d *DistributedScheduler) taskOptions() []asynq.Option {
	return []asynq.Option{asynq.MaxRetry(1), asynq.Unique(d.interval / 2)}
}

// Run blocks until ctx is cancelled.
func (d *DistributedScheduler) Run(ctx context.Context) error {
	alog := asynqLogger{d.logger}

	scheduler := asynq.NewScheduler(d.redis, &asynq.SchedulerOpts{Logger: alog})
	cronspec := fmt.Sprintf("@every %s", d.interval)
	if _, err := scheduler.Register(cronspec, asynq.NewTask(TaskSync, nil), d.taskOptions()...); err != nil {
		return fmt.Errorf("register news task: %w", err)
	}

	srv := asynq.NewServer(d.redis, asynq.Config{Concurrency: 1, Logger: alog})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskSync, d.HandleSyncTask)

	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		return fmt.Errorf("start asynq scheduler: %w", err)
	}

	// Initial sync; the unique lock keeps concurrent instances from all crawling at boot.
	client := asynq.NewClient(d.redis)
	_, err := client.Enqueue(asynq.NewTask(TaskSync, nil), d.taskOptions()...)
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		d.logger.Warn("initial news sync not enqueued", map[string]interface{}{"error": err.Error()})
	}
	client.Close()

	d.logger.Info("news scheduler started", map[string]interface{}{
		"interval": d.interval.String(),
		"mode":     "asynq",
	})
	<-ctx.Done()

	scheduler.Shutdown()
	srv.Shutdown()
	d.logger.Info("news scheduler stopped", nil)
	return nil
}

// asynqLogger adapts logger.Logger to asynq's printf-less interface.
type asynqLogger struct{ l logger.Logger }

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug(fmt.Sprint(args...), nil) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info(fmt.Sprint(args...), nil) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn(fmt.Sprint(args...), nil) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error(fmt.Sprint(args...), nil) }
func (a asynqLogger) Fatal(args ...interface{}) {
	a.l.Error(fmt.Sprint(args...), map[string]interface{}{"fatal": true})
	os.Exit(1)
}
