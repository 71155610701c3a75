// internal/render/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	apperrors "render-workers/internal/common/errors"
	"render-workers/internal/common/logger"
	"render-workers/internal/common/metrics"
	"render-workers/internal/common/observability"
	"render-workers/internal/render/model"
	"render-workers/internal/render/monitor"
	"render-workers/internal/render/readiness"
	"render-workers/internal/render/timing"
)

// ErrAlreadyRunning is returned when a record already has a run in flight.
var ErrAlreadyRunning = errors.New("render already in flight for record")

const defaultWriteTimeout = 10 * time.Second

// RecordStore reads and writes a record's field set. Implementations must be
// safe for concurrent use.
type RecordStore interface {
	Get(ctx context.Context, id string) (model.Record, error)
	Update(ctx context.Context, id string, fields map[string]any) error
}

// Runner supervises one plan to a terminal state.
type Runner interface {
	Run(ctx context.Context, plan model.TimingPlan) (monitor.Result, error)
}

type Escalator interface {
	Escalate(ctx context.Context, outcome model.Outcome) error
}

type AuditSink interface {
	IndexOutcome(ctx context.Context, outcome model.Outcome) error
}

// Options wires the orchestrator. Store and one of Monitor or Service are
// required; Escalator, Audit and Observability are optional.
type Options struct {
	Store         RecordStore
	Service       monitor.RenderService
	Gate          *readiness.Gate
	Composer      *timing.Composer
	Monitor       Runner
	Escalator     Escalator
	Audit         AuditSink
	Observability *observability.Observability
	Logger        logger.Logger
	WriteTimeout  time.Duration
}

type Orchestrator struct {
	store        RecordStore
	gate         *readiness.Gate
	composer     *timing.Composer
	monitor      Runner
	escalator    Escalator
	audit        AuditSink
	obs          *observability.Observability
	logger       logger.Logger
	tracer       trace.Tracer
	writeTimeout time.Duration
	now          func() time.Time
	newRunID     func() string

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("orchestrator: record store is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	runner := opts.Monitor
	if runner == nil {
		if opts.Service == nil {
			return nil, fmt.Errorf("orchestrator: render service or monitor is required")
		}
		runner = monitor.NewMonitor(opts.Service, nil, nil, log)
	}
	gate := opts.Gate
	if gate == nil {
		gate = readiness.NewGate(nil, log)
	}
	composer := opts.Composer
	if composer == nil {
		composer = timing.NewComposer(nil, log)
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	return &Orchestrator{
		store:        opts.Store,
		gate:         gate,
		composer:     composer,
		monitor:      runner,
		escalator:    opts.Escalator,
		audit:        opts.Audit,
		obs:          opts.Observability,
		logger:       log.WithFields(map[string]interface{}{"component": "render-orchestrator"}),
		tracer:       otel.Tracer("render-workers/orchestrator"),
		writeTimeout: writeTimeout,
		now:          time.Now,
		newRunID:     uuid.NewString,
		inFlight:     make(map[string]struct{}),
	}, nil
}

// Run takes one record from a fresh snapshot to a reported outcome. A record
// that is not ready is never submitted. The returned error is reserved for
// infrastructure failures, cancellation and ErrAlreadyRunning; render
// failures are reported in the Outcome.
func (o *Orchestrator) Run(ctx context.Context, recordID string) (model.Outcome, error) {
	if recordID == "" {
		return model.Outcome{}, apperrors.NewInvalidInputError("record id is required")
	}
	if !o.acquire(recordID) {
		return model.Outcome{}, fmt.Errorf("%w: %s", ErrAlreadyRunning, recordID)
	}
	defer o.release(recordID)

	outcome := model.Outcome{
		RecordID:  recordID,
		RunID:     o.newRunID(),
		StartedAt: o.now(),
	}

	ctx, span := o.tracer.Start(ctx, "render.orchestrator.run", trace.WithAttributes(
		attribute.String("record.id", recordID),
		attribute.String("run.id", outcome.RunID),
	))
	defer span.End()

	log := o.logger.WithFields(map[string]interface{}{"recordId": recordID, "runId": outcome.RunID})

	rec, err := o.store.Get(ctx, recordID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.Outcome{}, err
	}

	report := o.gate.Evaluate(rec)
	outcome.Report = report
	if !report.Ready {
		metrics.ReadinessEvaluations.WithLabelValues("not_ready").Inc()
		return o.rejectUnready(ctx, log, outcome)
	}
	metrics.ReadinessEvaluations.WithLabelValues("ready").Inc()
	outcome.Approved = true
	if len(report.Warnings) > 0 {
		log.Warn("readiness passed with degraded checks", map[string]interface{}{"warnings": report.Warnings})
	}

	plan, err := o.composer.ComposeDefault(rec)
	if err != nil {
		o.compositionFailed(&outcome, err)
		log.Warn("composition failed", map[string]interface{}{"error": err.Error()})
		return o.finish(ctx, span, log, outcome)
	}

	res, err := o.monitor.Run(ctx, plan)
	if err != nil {
		if errors.Is(err, monitor.ErrCancelled) {
			log.Info("render run cancelled, record left untouched", nil)
		}
		span.SetStatus(codes.Error, err.Error())
		return model.Outcome{}, err
	}

	outcome.Status = res.Status
	outcome.JobID = res.JobID
	outcome.OutputURL = res.OutputURL
	outcome.Attempts = res.Attempts
	outcome.Category = res.Category
	outcome.Reason = res.Reason
	outcome.Failures = res.Failures
	return o.finish(ctx, span, log, outcome)
}

func (o *Orchestrator) rejectUnready(ctx context.Context, log logger.Logger, outcome model.Outcome) (model.Outcome, error) {
	outcome.Category = apperrors.CategoryNone
	outcome.Reason = outcome.Report.Reason()
	outcome.EndedAt = o.now()

	log.Info("record not ready, render skipped", map[string]interface{}{
		"missing":  outcome.Report.Missing,
		"pending":  outcome.Report.Pending,
		"rejected": outcome.Report.Rejected,
	})

	wctx, cancel := o.writeContext(ctx)
	defer cancel()
	if err := o.store.Update(wctx, outcome.RecordID, map[string]any{
		model.FieldReadinessStatus: model.ReadinessNotReady,
		model.FieldReadinessReason: outcome.Reason,
	}); err != nil {
		return outcome, err
	}

	o.index(wctx, log, outcome)
	return outcome, nil
}

func (o *Orchestrator) compositionFailed(outcome *model.Outcome, err error) {
	category := apperrors.CategoryUnknown
	var compErr *timing.CompositionError
	if errors.As(err, &compErr) {
		category = apperrors.CategoryAsset
	}
	outcome.Status = model.StatusFailed
	outcome.Category = category
	outcome.Reason = err.Error()
	outcome.Failures = []model.FailureEvent{{
		Timestamp:  o.now().UTC(),
		Category:   category,
		RawMessage: err.Error(),
		Phase:      model.PhaseCompose,
	}}
}

// finish writes the terminal outcome in one update, then escalates and
// indexes it. Escalation and audit failures are logged only.
func (o *Orchestrator) finish(ctx context.Context, span trace.Span, log logger.Logger, outcome model.Outcome) (model.Outcome, error) {
	outcome.EndedAt = o.now()
	outcome.Category = outcomeCategory(outcome)

	span.SetAttributes(
		attribute.String("render.status", string(outcome.Status)),
		attribute.Int("render.attempts", outcome.Attempts),
	)
	if !outcome.Succeeded() {
		span.SetStatus(codes.Error, outcome.Reason)
	}

	wctx, cancel := o.writeContext(ctx)
	defer cancel()

	fields, err := outcomeFields(outcome)
	if err != nil {
		return outcome, err
	}
	if err := o.store.Update(wctx, outcome.RecordID, fields); err != nil {
		log.Error("failed to write render outcome", map[string]interface{}{"error": err.Error()})
		return outcome, err
	}

	if o.escalator != nil && (outcome.Status == model.StatusFailed || outcome.Status == model.StatusTimedOut) {
		if err := o.escalator.Escalate(wctx, outcome); err != nil {
			log.Warn("escalation failed", map[string]interface{}{"error": err.Error()})
		}
	}
	o.index(wctx, log, outcome)

	o.obs.RecordOutcome(ctx, string(outcome.Status), string(outcome.Category), outcome.Attempts, outcome.EndedAt.Sub(outcome.StartedAt))

	log.Info("render run finished", map[string]interface{}{
		"status":   string(outcome.Status),
		"jobId":    outcome.JobID,
		"attempts": outcome.Attempts,
		"category": string(outcome.Category),
		"url":      outcome.OutputURL,
	})
	return outcome, nil
}

func (o *Orchestrator) index(ctx context.Context, log logger.Logger, outcome model.Outcome) {
	if o.audit == nil {
		return
	}
	if err := o.audit.IndexOutcome(ctx, outcome); err != nil {
		log.Warn("audit index failed", map[string]interface{}{"error": err.Error()})
	}
}

// writeContext survives caller cancellation so a resolved run is always
// written in full.
func (o *Orchestrator) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), o.writeTimeout)
}

func (o *Orchestrator) acquire(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.inFlight[id]; ok {
		return false
	}
	o.inFlight[id] = struct{}{}
	return true
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	delete(o.inFlight, id)
	o.mu.Unlock()
}

// InFlight reports whether id currently has a run in progress.
func (o *Orchestrator) InFlight(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inFlight[id]
	return ok
}

func outcomeFields(outcome model.Outcome) (map[string]any, error) {
	failures := outcome.Failures
	if failures == nil {
		failures = []model.FailureEvent{}
	}
	failureLog, err := json.Marshal(failures)
	if err != nil {
		return nil, fmt.Errorf("encode failure log: %w", err)
	}

	return map[string]any{
		model.FieldReadinessStatus:     model.ReadinessReady,
		model.FieldReadinessReason:     outcome.Report.Reason(),
		model.FieldRenderStatus:        string(outcome.Status),
		model.FieldRenderJobID:         outcome.JobID,
		model.FieldVideoURL:            outcome.OutputURL,
		model.FieldRenderAttempts:      outcome.Attempts,
		model.FieldRenderErrorCategory: string(outcome.Category),
		model.FieldRenderReason:        outcome.Reason,
		model.FieldRenderFailureLog:    string(failureLog),
		model.FieldRenderUpdatedAt:     outcome.EndedAt.UTC().Format(time.RFC3339),
	}, nil
}

// outcomeCategory fills a blank category so every outcome carries one.
func outcomeCategory(outcome model.Outcome) apperrors.Category {
	switch {
	case outcome.Category != "":
		return outcome.Category
	case outcome.Status == model.StatusTimedOut:
		return apperrors.CategoryTimeout
	case outcome.Status == model.StatusFailed:
		return apperrors.CategoryUnknown
	}
	return apperrors.CategoryNone
}

// BatchResult is the result of one record in a batch.
type BatchResult struct {
	RecordID string
	Outcome  model.Outcome
	Err      error
}

// RunBatch runs each record in its own goroutine, at most parallelism at a
// time. One record's failure never stops the others. Results keep the order
// of ids.
func (o *Orchestrator) RunBatch(ctx context.Context, ids []string, parallelism int) []BatchResult {
	if parallelism <= 0 {
		parallelism = 1
	}
	results := make([]BatchResult, len(ids))

	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = BatchResult{RecordID: id, Err: fmt.Errorf("%w: %v", monitor.ErrCancelled, err)}
				return nil
			}
			outcome, err := o.Run(ctx, id)
			results[i] = BatchResult{RecordID: id, Outcome: outcome, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
