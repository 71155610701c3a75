// internal/render/monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "render-workers/internal/common/errors"
	"render-workers/internal/common/logger"
	"render-workers/internal/common/metrics"
	"render-workers/internal/render/classifier"
	"render-workers/internal/render/model"
	"render-workers/internal/render/retry"
)

// ErrCancelled is returned when the caller cancels a run. A cancelled run has
// no terminal state and nothing should be written for it.
var ErrCancelled = errors.New("render monitoring cancelled")

type Config struct {
	InitialDelay time.Duration
	PollInterval time.Duration
	PollJitter   time.Duration
	MaxPolls     int
	Ceiling      time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		InitialDelay: 60 * time.Second,
		PollInterval: 15 * time.Second,
		PollJitter:   time.Second,
		MaxPolls:     40,
		Ceiling:      20 * time.Minute,
	}
}

// Result is the terminal state of one monitored run. Jobs holds every
// submission in order; Failures is the append-only failure history.
type Result struct {
	Status    model.JobStatus
	JobID     string
	OutputURL string
	Attempts  int
	Category  apperrors.Category
	Reason    string
	Jobs      []model.RenderJob
	Failures  []model.FailureEvent
	StartedAt time.Time
	EndedAt   time.Time
}

// Monitor drives render jobs from submission to a terminal state. A Monitor
// holds no per-run state and may run several plans concurrently.
type Monitor struct {
	service RenderService
	policy  *retry.Policy
	config  *Config
	logger  logger.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

func NewMonitor(service RenderService, policy *retry.Policy, config *Config, log logger.Logger) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	if policy == nil {
		policy = retry.NewPolicy(nil)
	}
	return &Monitor{
		service: service,
		policy:  policy,
		config:  config,
		logger:  log.WithFields(map[string]interface{}{"component": "render-monitor"}),
		tracer:  otel.Tracer("render-workers/monitor"),
		now:     time.Now,
	}
}

// failure is one observed failure before classification. A preset category
// bypasses the classifier.
type failure struct {
	phase    model.FailurePhase
	signal   classifier.Signal
	category apperrors.Category
}

func (f failure) message() string {
	if f.signal.Message != "" {
		return f.signal.Message
	}
	if f.signal.Err != nil {
		return f.signal.Err.Error()
	}
	return "unspecified failure"
}

type run struct {
	m       *Monitor
	plan    model.TimingPlan
	parent  context.Context
	ceiling context.Context
	log     logger.Logger
	result  Result
}

// Run submits plan and supervises it until Done, Failed or TimedOut. It
// returns ErrCancelled, and no result, when ctx is cancelled first.
func (m *Monitor) Run(ctx context.Context, plan model.TimingPlan) (Result, error) {
	ctx, span := m.tracer.Start(ctx, "render.monitor.run", trace.WithAttributes(
		attribute.String("record.id", plan.RecordID),
		attribute.Int("plan.scenes", len(plan.Scenes)),
	))
	defer span.End()

	metrics.RenderRunsActive.Inc()
	defer metrics.RenderRunsActive.Dec()

	start := m.now()
	ceiling, cancel := context.WithDeadline(ctx, start.Add(m.config.Ceiling))
	defer cancel()

	r := &run{
		m:       m,
		plan:    plan,
		parent:  ctx,
		ceiling: ceiling,
		log:     m.logger.WithFields(map[string]interface{}{"recordId": plan.RecordID}),
		result:  Result{StartedAt: start},
	}

	res, err := r.loop()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		r.log.Warn("render monitoring cancelled", map[string]interface{}{"attempts": len(r.result.Jobs)})
		return Result{}, err
	}

	res.EndedAt = m.now()
	metrics.RenderRunDuration.WithLabelValues(string(res.Status)).Observe(res.EndedAt.Sub(res.StartedAt).Seconds())
	span.SetAttributes(
		attribute.String("render.status", string(res.Status)),
		attribute.Int("render.attempts", res.Attempts),
	)
	if res.Status != model.StatusDone {
		span.SetStatus(codes.Error, res.Reason)
	}
	return res, nil
}

func (r *run) loop() (Result, error) {
	for attempt := 1; ; attempt++ {
		r.result.Jobs = append(r.result.Jobs, model.RenderJob{
			State:     model.StatusQueued,
			Attempt:   attempt,
			CreatedAt: r.m.now(),
		})
		r.result.Attempts = attempt
		r.transition(model.StatusQueued)

		url, f, err := r.attempt()
		if err != nil {
			return r.interrupted(err)
		}
		if f == nil {
			r.transition(model.StatusDone)
			r.result.Status = model.StatusDone
			r.result.OutputURL = url
			r.result.Reason = "render completed"
			r.log.Info("render completed", map[string]interface{}{
				"jobId":    r.job().JobID,
				"attempts": attempt,
				"url":      url,
			})
			return r.result, nil
		}

		r.transition(model.StatusFailed)
		category := r.record(*f)

		decision := r.m.policy.Decide(category, attempt)
		if f.phase == model.PhaseSubmit {
			// a timed-out submit may have created a job; never resubmit at once
			decision = r.m.policy.Deferred(decision)
		}
		metrics.RenderRetryDecisions.WithLabelValues(string(category), decision.Action.String()).Inc()
		r.log.Warn("render attempt failed", map[string]interface{}{
			"jobId":    r.job().JobID,
			"attempt":  attempt,
			"category": string(category),
			"phase":    string(f.phase),
			"decision": decision.String(),
			"error":    f.message(),
		})

		if !decision.Retry() {
			r.result.Status = model.StatusFailed
			r.result.Category = category
			r.result.Reason = fmt.Sprintf("%s after %d attempt(s): %s", category, attempt, f.message())
			return r.result, nil
		}

		if err := decision.Wait(r.ceiling); err != nil {
			return r.interrupted(err)
		}
	}
}

// attempt runs one submission. It returns the output URL on success, the
// failure otherwise, or a context error when interrupted.
func (r *run) attempt() (string, *failure, error) {
	if err := r.ceiling.Err(); err != nil {
		return "", nil, err
	}

	jobID, err := r.m.service.Submit(r.ceiling, r.plan)
	if err != nil {
		if r.ceiling.Err() != nil {
			return "", nil, r.ceiling.Err()
		}
		return "", &failure{phase: model.PhaseSubmit, signal: classifier.FromError(err)}, nil
	}
	if jobID == "" {
		return "", &failure{
			phase:    model.PhaseSubmit,
			signal:   classifier.Signal{Message: "render service returned no job id"},
			category: apperrors.CategoryUnknown,
		}, nil
	}

	job := r.job()
	job.JobID = jobID
	r.transition(model.StatusSubmitted)
	r.log.Info("render job submitted", map[string]interface{}{"jobId": jobID, "attempt": job.Attempt})

	if err := sleep(r.ceiling, r.m.config.InitialDelay); err != nil {
		return "", nil, err
	}
	r.transition(model.StatusPolling)

	var ticker *jitterbug.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		if err := r.ceiling.Err(); err != nil {
			return "", nil, err
		}

		res, err := r.m.service.Poll(r.ceiling, jobID)
		job.Polls++
		job.LastPollAt = r.m.now()
		metrics.RenderPolls.Inc()

		if err != nil {
			if r.ceiling.Err() != nil {
				return "", nil, r.ceiling.Err()
			}
			return "", &failure{phase: model.PhasePoll, signal: classifier.FromError(err)}, nil
		}

		switch res.Status {
		case PollDone:
			if res.OutputURL == "" {
				return "", &failure{
					phase:    model.PhaseResult,
					signal:   classifier.Signal{Message: "render reported done without an output url"},
					category: apperrors.CategoryUnknown,
				}, nil
			}
			return res.OutputURL, nil, nil

		case PollError:
			f := &failure{phase: model.PhaseResult, signal: classifier.Signal{Message: res.Message}}
			if res.Message == "" {
				f.signal.Message = "render service reported an error"
				f.category = apperrors.CategoryUnknown
			}
			return "", f, nil

		case PollQueued, PollProcessing:
			if r.m.config.MaxPolls > 0 && job.Polls >= r.m.config.MaxPolls {
				return "", &failure{
					phase: model.PhasePoll,
					signal: classifier.Signal{
						TimedOut: true,
						Message:  fmt.Sprintf("no terminal status after %d polls", job.Polls),
					},
				}, nil
			}

		default:
			return "", &failure{
				phase:    model.PhaseResult,
				signal:   classifier.Signal{Message: fmt.Sprintf("unrecognised render status %q", res.Status)},
				category: apperrors.CategoryUnknown,
			}, nil
		}

		if ticker == nil {
			ticker = jitterbug.New(r.m.config.PollInterval, &jitterbug.Norm{Stdev: r.m.config.PollJitter, Mean: 0})
		}
		select {
		case <-r.ceiling.Done():
			return "", nil, r.ceiling.Err()
		case <-ticker.C:
		}
	}
}

// record classifies f and appends it to the failure history.
func (r *run) record(f failure) apperrors.Category {
	category := f.category
	if category == "" {
		category = classifier.Classify(f.signal)
	}
	job := r.job()
	r.result.Failures = append(r.result.Failures, model.FailureEvent{
		Timestamp:  r.m.now().UTC(),
		Category:   category,
		RawMessage: f.message(),
		Attempt:    job.Attempt,
		JobID:      job.JobID,
		Phase:      f.phase,
	})
	metrics.RenderFailures.WithLabelValues(string(category), string(f.phase)).Inc()
	return category
}

// interrupted resolves a context error into either cancellation or a
// TimedOut result. Caller cancellation takes precedence over the ceiling.
func (r *run) interrupted(err error) (Result, error) {
	if r.parent.Err() != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrCancelled, r.parent.Err())
	}
	if r.ceiling.Err() == nil {
		return Result{}, err
	}

	r.transition(model.StatusTimedOut)
	r.result.Status = model.StatusTimedOut
	r.result.Category = apperrors.CategoryTimeout
	r.result.Reason = fmt.Sprintf("no terminal state within %s (attempt %d)", r.m.config.Ceiling, r.result.Attempts)
	r.result.Failures = append(r.result.Failures, model.FailureEvent{
		Timestamp:  r.m.now().UTC(),
		Category:   apperrors.CategoryTimeout,
		RawMessage: r.result.Reason,
		Attempt:    r.result.Attempts,
		JobID:      r.job().JobID,
		Phase:      model.PhasePoll,
	})
	metrics.RenderFailures.WithLabelValues(string(apperrors.CategoryTimeout), string(model.PhasePoll)).Inc()
	r.log.Warn("render timed out", map[string]interface{}{
		"jobId":    r.job().JobID,
		"attempts": r.result.Attempts,
		"ceiling":  r.m.config.Ceiling.String(),
	})
	return r.result, nil
}

func (r *run) job() *model.RenderJob {
	return &r.result.Jobs[len(r.result.Jobs)-1]
}

func (r *run) transition(state model.JobStatus) {
	job := r.job()
	job.State = state
	r.result.JobID = job.JobID
	metrics.RenderTransitions.WithLabelValues(string(state)).Inc()
	r.log.Debug("render job transition", map[string]interface{}{
		"jobId":   job.JobID,
		"attempt": job.Attempt,
		"state":   string(state),
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
