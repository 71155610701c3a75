// internal/render/model/models.go
package model

import (
	"fmt"
	"strings"
	"time"

	apperrors "render-workers/internal/common/errors"
)

// ReadinessReport is the result of one readiness evaluation. It is built
// fresh on every evaluation and must not be mutated by callers.
type ReadinessReport struct {
	Ready    bool     `json:"ready"`
	Passed   []string `json:"passed"`
	Missing  []string `json:"missing"`
	Pending  []string `json:"pending"`
	Rejected []string `json:"rejected"`
	Warnings []string `json:"warnings,omitempty"`
}

// Reason renders a one-line operator summary of the report.
func (r ReadinessReport) Reason() string {
	if r.Ready {
		if len(r.Warnings) > 0 {
			return "ready (" + strings.Join(r.Warnings, "; ") + ")"
		}
		return "ready"
	}
	var parts []string
	if len(r.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing: %s", strings.Join(r.Missing, ", ")))
	}
	if len(r.Pending) > 0 {
		parts = append(parts, fmt.Sprintf("pending: %s", strings.Join(r.Pending, ", ")))
	}
	if len(r.Rejected) > 0 {
		parts = append(parts, fmt.Sprintf("rejected: %s", strings.Join(r.Rejected, ", ")))
	}
	if len(parts) == 0 {
		return "not ready"
	}
	return strings.Join(parts, "; ")
}

// SceneRole identifies the kind of a scene.
type SceneRole string

const (
	RoleIntro SceneRole = "intro"
	RoleItem  SceneRole = "item"
	RoleOutro SceneRole = "outro"
)

// MediaKind identifies the kind of a media reference.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

type MediaRef struct {
	URL  string    `json:"url"`
	Kind MediaKind `json:"kind"`
}

// SceneSpec is one timed segment of the video.
type SceneSpec struct {
	ID              string     `json:"id"`
	Role            SceneRole  `json:"role"`
	Rank            int        `json:"rank,omitempty"`
	DurationSeconds int        `json:"durationSeconds"`
	MediaRefs       []MediaRef `json:"mediaRefs"`
	NarrationRef    MediaRef   `json:"narrationRef"`
	Caption         string     `json:"caption,omitempty"`
	Title           string     `json:"title,omitempty"`
	Price           string     `json:"price,omitempty"`
	Rating          string     `json:"rating,omitempty"`
	Reviews         string     `json:"reviews,omitempty"`
}

// TimingPlan is an ordered scene list whose durations sum exactly to
// TotalDurationSeconds. Plans are immutable once composed.
type TimingPlan struct {
	RecordID             string      `json:"recordId"`
	Scenes               []SceneSpec `json:"scenes"`
	TotalDurationSeconds int         `json:"totalDurationSeconds"`
}

// SceneDurationSum returns the sum of every scene's duration.
func (p TimingPlan) SceneDurationSum() int {
	total := 0
	for _, s := range p.Scenes {
		total += s.DurationSeconds
	}
	return total
}

// JobStatus is the life cycle state of a render job.
type JobStatus string

const (
	StatusQueued    JobStatus = "Queued"
	StatusSubmitted JobStatus = "Submitted"
	StatusPolling   JobStatus = "Polling"
	StatusDone      JobStatus = "Done"
	StatusFailed    JobStatus = "Failed"
	StatusTimedOut  JobStatus = "TimedOut"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusTimedOut:
		return true
	case StatusQueued, StatusSubmitted, StatusPolling:
		return false
	}
	return false
}

// RenderJob is one submission to the render service. JobID is assigned once
// by the service; State is the only field that moves afterwards.
type RenderJob struct {
	JobID      string    `json:"jobId"`
	State      JobStatus `json:"state"`
	Attempt    int       `json:"attempt"`
	CreatedAt  time.Time `json:"createdAt"`
	LastPollAt time.Time `json:"lastPollAt,omitempty"`
	Polls      int       `json:"polls"`
}

// FailurePhase says where in the life cycle a failure was observed.
type FailurePhase string

const (
	PhaseCompose FailurePhase = "compose"
	PhaseSubmit  FailurePhase = "submit"
	PhasePoll    FailurePhase = "poll"
	PhaseResult  FailurePhase = "result"
)

// FailureEvent is one entry of a job's append-only failure history.
type FailureEvent struct {
	Timestamp  time.Time          `json:"timestamp"`
	Category   apperrors.Category `json:"category"`
	RawMessage string             `json:"rawMessage"`
	Attempt    int                `json:"attempt"`
	JobID      string             `json:"jobId,omitempty"`
	Phase      FailurePhase       `json:"phase"`
}

// Outcome is what the orchestrator reports for one record run.
type Outcome struct {
	RecordID  string             `json:"recordId"`
	RunID     string             `json:"runId"`
	Approved  bool               `json:"approved"`
	Report    ReadinessReport    `json:"report"`
	Status    JobStatus          `json:"status,omitempty"`
	JobID     string             `json:"jobId,omitempty"`
	OutputURL string             `json:"outputUrl,omitempty"`
	Attempts  int                `json:"attempts"`
	Category  apperrors.Category `json:"category,omitempty"`
	Reason    string             `json:"reason"`
	Failures  []FailureEvent     `json:"failures,omitempty"`
	StartedAt time.Time          `json:"startedAt"`
	EndedAt   time.Time          `json:"endedAt"`
}

// Succeeded reports whether the run produced a video.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusDone && o.OutputURL != ""
}
