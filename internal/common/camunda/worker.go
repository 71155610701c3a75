// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"render-workers/internal/common/config"
	"render-workers/internal/common/logger"
	"render-workers/internal/common/metrics"
)

// HandlerFunc is the signature every task handler exposes.
type HandlerFunc func(client worker.JobClient, job entities.Job)

// Worker is one open job worker subscription.
type Worker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// StartWorker opens a job worker for taskType. It returns nil when the worker
// is disabled.
func StartWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler HandlerFunc, log logger.Logger) *Worker {
	log = log.WithFields(map[string]interface{}{"taskType": taskType})
	if !wcfg.Enabled {
		log.Info("worker disabled", nil)
		return nil
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(instrument(taskType, handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started", map[string]interface{}{
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})

	return &Worker{worker: jobWorker, logger: log, taskType: taskType}
}

// Stop closes the subscription and waits for in-flight handlers.
func (w *Worker) Stop() {
	if w == nil {
		return
	}
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}

func instrument(taskType string, handler HandlerFunc) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()

		start := time.Now()
		handler(client, job)
		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
	}
}
