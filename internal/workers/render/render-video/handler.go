// internal/workers/render/render-video/handler.go
package rendervideo

import (
	"context"
	"errors"
	"time"

	apperrors "render-workers/internal/common/errors"
	"render-workers/internal/common/logger"
	"render-workers/internal/common/metrics"
	"render-workers/internal/render/model"
	"render-workers/internal/render/monitor"
	"render-workers/internal/render/orchestrator"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "render-video"
)

// Renderer runs one record through readiness, composition and rendering.
type Renderer interface {
	Run(ctx context.Context, recordID string) (model.Outcome, error)
}

type Handler struct {
	config       *Config
	renderer     Renderer
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, renderer Renderer, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		renderer:     renderer,
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

	outcome, err := h.renderer.Run(ctx, input.RecordID)
	if err != nil {
		return nil, mapRunError(input.RecordID, err)
	}

	output := newOutput(outcome)

	switch {
	case !outcome.Approved:
		return output, apperrors.NewRecordNotReadyError(outcome.Reason)
	case outcome.Succeeded():
		return output, nil
	case outcome.Status == model.StatusTimedOut:
		return output, apperrors.NewRenderTimedOutError(outcome.Reason)
	case failedInPhase(outcome, model.PhaseCompose):
		return output, apperrors.NewCompositionFailedError(outcome.Reason)
	default:
		return output, apperrors.NewRenderFailedError(outcome.Category, outcome.Reason)
	}
}

func mapRunError(recordID string, err error) error {
	var stdErr *apperrors.StandardError
	switch {
	case errors.Is(err, orchestrator.ErrAlreadyRunning):
		return apperrors.NewRenderInFlightError(recordID)
	case errors.Is(err, monitor.ErrCancelled):
		return apperrors.NewExternalServiceError("render-monitor", err)
	case errors.As(err, &stdErr):
		return stdErr
	default:
		return apperrors.NewExternalServiceError("render-orchestrator", err)
	}
}

func failedInPhase(o model.Outcome, phase model.FailurePhase) bool {
	return len(o.Failures) > 0 && o.Failures[len(o.Failures)-1].Phase == phase
}

func newOutput(o model.Outcome) *Output {
	return &Output{
		RecordID:      o.RecordID,
		RunID:         o.RunID,
		Approved:      o.Approved,
		RenderStatus:  string(o.Status),
		VideoURL:      o.OutputURL,
		RenderJobID:   o.JobID,
		Attempts:      o.Attempts,
		ErrorCategory: string(o.Category),
		Reason:        o.Reason,
		Missing:       o.Report.Missing,
		Pending:       o.Report.Pending,
		Rejected:      o.Report.Rejected,
	}
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
