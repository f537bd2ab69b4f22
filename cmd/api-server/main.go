package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"energy-ai-agent/internal/api"
	"energy-ai-agent/internal/app"
	"energy-ai-agent/internal/common/config"
	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/common/observability"

	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "console").Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	obs := observability.New("api-server")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	go func() {
		if err := a.RunNewsScheduler(ctx); err != nil {
			log.Error("news scheduler stopped", map[string]interface{}{"error": err.Error()})
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.NewRouter(a.APIDeps(obs)),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		log.Info("api server listening", map[string]interface{}{
			"address": srv.Addr,
			"dry_run": cfg.App.DryRun,
			"llm":     a.LLM.Enabled(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("server is shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", map[string]interface{}{"error": err.Error()})
	}
	log.Info("server stopped gracefully", nil)
}
