// internal/workers/render/check-readiness/handler.go
package checkreadiness

import (
	"context"
	"time"

	apperrors "render-workers/internal/common/errors"
	"render-workers/internal/common/logger"
	"render-workers/internal/common/metrics"
	"render-workers/internal/render/model"
	"render-workers/internal/render/orchestrator"
	"render-workers/internal/render/readiness"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "check-readiness"
)

// Handler evaluates a record's readiness without rendering it. A record that
// is not ready completes the job normally; the process branches on "ready".
type Handler struct {
	config       *Config
	store        orchestrator.RecordStore
	gate         *readiness.Gate
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, store orchestrator.RecordStore, gate *readiness.Gate, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	if gate == nil {
		gate = readiness.NewGate(nil, log)
	}
	return &Handler{
		config:       config,
		store:        store,
		gate:         gate,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := inputSchema.Decode(job.Variables, &input); err != nil {
		h.failJob(client, job, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.RecordID == "" {
		return nil, apperrors.NewInvalidInputError("recordId is required")
	}

	rec, err := h.store.Get(ctx, input.RecordID)
	if err != nil {
		return nil, err
	}

	report := h.gate.Evaluate(rec)
	result := "not_ready"
	if report.Ready {
		result = "ready"
	}
	metrics.ReadinessEvaluations.WithLabelValues(result).Inc()

	if input.Persist {
		status := model.ReadinessNotReady
		if report.Ready {
			status = model.ReadinessReady
		}
		if err := h.store.Update(ctx, input.RecordID, map[string]any{
			model.FieldReadinessStatus: status,
			model.FieldReadinessReason: report.Reason(),
		}); err != nil {
			return nil, err
		}
	}

	h.logger.Info("readiness checked", map[string]interface{}{
		"recordId": input.RecordID,
		"ready":    report.Ready,
		"missing":  len(report.Missing),
		"pending":  len(report.Pending),
		"rejected": len(report.Rejected),
	})

	return &Output{
		RecordID: input.RecordID,
		Ready:    report.Ready,
		Reason:   report.Reason(),
		Passed:   len(report.Passed),
		Missing:  nonNil(report.Missing),
		Pending:  nonNil(report.Pending),
		Rejected: nonNil(report.Rejected),
		Warnings: report.Warnings,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	stdErr := apperrors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
