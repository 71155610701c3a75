// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"render-workers/internal/common/camunda"
	"render-workers/internal/common/config"
	"render-workers/internal/common/logger"
	"render-workers/internal/common/observability"
	"render-workers/internal/render/pipeline"

	cr "render-workers/internal/workers/render/check-readiness"
	rv "render-workers/internal/workers/render/render-video"
)

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
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting render worker manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("store", cfg.Store.Backend),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	tracing, err := observability.NewTracing(observability.TracingConfig{
		ServiceName:    cfg.App.Name,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
		SampleRatio:    cfg.Observability.SampleRatio,
	})
	if err != nil {
		zapLog.Fatal("tracing init failed", zap.Error(err))
	}

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Render pipeline: record store, render client, escalation, audit ---
	pipe, err := pipeline.Open(ctx, cfg, pipeline.Options{
		Retry: func(operation func() error, name string) error {
			return retryWithBackoff(operation, 15, 2*time.Second, zapLog, name)
		},
		Observability: obs,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("render pipeline init failed", zap.Error(err))
	}
	defer pipe.Close()
	zapLog.Info("Render pipeline ready",
		zap.Bool("escalation", cfg.Notifications.SNS.Enabled || cfg.Notifications.Email.Enabled),
		zap.Bool("audit", cfg.Audit.Enabled),
	)

	// --- Register workers ---
	renderCfg := pipeline.RenderWorkerConfig(config.GetWorkerConfig(cfg, rv.TaskType), cfg.Monitor)
	renderHandler := rv.NewHandler(&rv.Config{
		Timeout: config.GetDuration(renderCfg.Timeout),
	}, pipe.Orchestrator, log)

	readinessCfg := config.GetWorkerConfig(cfg, cr.TaskType)
	readinessHandler := cr.NewHandler(&cr.Config{
		Timeout: config.GetDuration(readinessCfg.Timeout),
	}, pipe.Store, pipe.Gate, log)

	workers := []*camunda.Worker{
		camunda.StartWorker(zeebe.GetClient(), rv.TaskType, renderCfg, renderHandler.Handle, log),
		camunda.StartWorker(zeebe.GetClient(), cr.TaskType, readinessCfg, readinessHandler.Handle, log),
	}
	zapLog.Info("Render workers registered")

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := zeebe.HealthCheck(checkCtx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "zeebe": err.Error()})
			return
		}
		if err := pipe.Ping(checkCtx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "store": err.Error()})
			return
		}
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	for _, w := range workers {
		w.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := tracing.Shutdown(); err != nil {
		zapLog.Error("Error flushing traces", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
