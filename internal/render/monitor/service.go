// internal/render/monitor/service.go
package monitor

import (
	"context"

	"render-workers/internal/render/model"
)

// PollStatus is the status string reported by the render service.
type PollStatus string

const (
	PollQueued     PollStatus = "queued"
	PollProcessing PollStatus = "processing"
	PollDone       PollStatus = "done"
	PollError      PollStatus = "error"
)

// PollResult is one status check of a submitted job.
type PollResult struct {
	Status    PollStatus
	OutputURL string
	Message   string
}

// RenderService submits plans and reports job status. Implementations must be
// safe for concurrent use by several monitors.
type RenderService interface {
	Submit(ctx context.Context, plan model.TimingPlan) (string, error)
	Poll(ctx context.Context, jobID string) (PollResult, error)
}
