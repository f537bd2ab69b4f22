// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"energy-ai-agent/internal/app"
	"energy-ai-agent/internal/common/camunda"
	"energy-ai-agent/internal/common/config"
	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/common/observability"

	// Assistant Workers (2)
	rta "energy-ai-agent/internal/workers/assistant/run-tool-agent"
	sen "energy-ai-agent/internal/workers/assistant/search-energy-news"

	// Reservation Workers (6)
	pri "energy-ai-agent/internal/workers/reservation/parse-reservation-intent"
	prc "energy-ai-agent/internal/workers/reservation/place-reservation-call"
	rb "energy-ai-agent/internal/workers/reservation/record-booking"
	sv "energy-ai-agent/internal/workers/reservation/search-venues"
	sbn "energy-ai-agent/internal/workers/reservation/send-booking-notification"
	slv "energy-ai-agent/internal/workers/reservation/select-venue"
)

const healthAddr = ":8080"

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}
	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log := logger.NewZapAdapter(zapLog)

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(cfg.Camunda)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Shared stores and step handlers ---
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	workers := registerWorkers(zeebe.GetClient(), cfg, a, obs, zapLog)
	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		status := http.StatusOK
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			checks["zeebe"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["zeebe"] = "ok"
		}
		for name, p := range a.Pingers() {
			if err := p.Ping(r.Context()); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		writeJSON(w, status, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	health := &http.Server{Addr: healthAddr, Handler: mux}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", healthAddr))
		if err := health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	for _, w := range workers {
		w.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = health.Shutdown(shutdownCtx)

	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	zapLog.Info("Worker manager stopped")
}

// registerWorkers opens a job worker for every enabled task type. Workers whose backing store
// is not configured are skipped with a warning.
func registerWorkers(client zbc.Client, cfg *config.Config, a *app.App, obs *observability.Observability, zapLog *zap.Logger) []*camunda.CamundaWorker {
	var started []*camunda.CamundaWorker
	start := func(taskType string, handler camunda.JobHandlerFunc) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		if !wcfg.Enabled {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			return
		}
		started = append(started, camunda.NewWorker(client, taskType, wcfg, handler, obs, zapLog))
	}
	skip := func(taskType, reason string) {
		zapLog.Warn("worker not started", zap.String("taskType", taskType), zap.String("reason", reason))
	}

	// --- 1. Reservation Workers (6) ---
	start(pri.TaskType, a.Intent.Handle)
	start(sv.TaskType, a.Places.Handle)
	start(slv.TaskType, a.Picker.Handle)
	start(prc.TaskType, a.Caller.Handle)
	if a.Recorder != nil {
		start(rb.TaskType, a.Recorder.Handle)
	} else {
		skip(rb.TaskType, "postgres is not configured")
	}
	if a.Notifier != nil {
		start(sbn.TaskType, a.Notifier.Handle)
	} else {
		skip(sbn.TaskType, "no notification channel is enabled")
	}

	// --- 2. Assistant Workers (2) ---
	start(rta.TaskType, a.Agent.Handle)
	if a.NewsJob != nil {
		start(sen.TaskType, a.NewsJob.Handle)
	} else {
		skip(sen.TaskType, "elasticsearch is not configured")
	}

	return started
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
