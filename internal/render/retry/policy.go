// internal/render/retry/policy.go
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/lthibault/jitterbug/v2"

	apperrors "render-workers/internal/common/errors"
)

// Action is what to do after a failed attempt.
type Action int

const (
	GiveUp Action = iota
	RetryNow
	RetryAfter
)

func (a Action) String() string {
	switch a {
	case RetryNow:
		return "retry-now"
	case RetryAfter:
		return "retry-after"
	case GiveUp:
		return "give-up"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Decision is the outcome of Policy.Decide. Delay is deterministic; Spread is
// the standard deviation of the jitter applied when the caller waits.
type Decision struct {
	Action      Action
	Category    apperrors.Category
	Attempt     int
	MaxAttempts int
	Delay       time.Duration
	Spread      time.Duration
}

// Retry reports whether another attempt should be made.
func (d Decision) Retry() bool {
	return d.Action == RetryNow || d.Action == RetryAfter
}

func (d Decision) String() string {
	if d.Action == RetryAfter {
		return fmt.Sprintf("%s(%s) %s attempt %d/%d", d.Action, d.Delay, d.Category, d.Attempt, d.MaxAttempts)
	}
	return fmt.Sprintf("%s %s attempt %d/%d", d.Action, d.Category, d.Attempt, d.MaxAttempts)
}

// JitteredDelay samples the delay to actually wait.
func (d Decision) JitteredDelay() time.Duration {
	if d.Action != RetryAfter || d.Delay <= 0 {
		return 0
	}
	if d.Spread <= 0 {
		return d.Delay
	}
	wait := (&jitterbug.Norm{Stdev: d.Spread, Mean: 0}).Jitter(d.Delay)
	if wait < 0 {
		return 0
	}
	return wait
}

// Wait blocks for the jittered delay or until ctx is done.
func (d Decision) Wait(ctx context.Context) error {
	wait := d.JitteredDelay()
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Config is the per-category attempt budget and the backoff shape.
// MaxAttempts counts total attempts, including the first.
type Config struct {
	MaxAttempts    map[apperrors.Category]int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterFraction float64
}

func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: map[apperrors.Category]int{
			apperrors.CategoryTemplate: 1,
			apperrors.CategoryAsset:    2,
			apperrors.CategoryTimeout:  3,
			apperrors.CategoryQuota:    0,
			apperrors.CategoryNetwork:  3,
			apperrors.CategoryUnknown:  2,
		},
		BaseDelay:      30 * time.Second,
		MaxDelay:       5 * time.Minute,
		JitterFraction: 0.2,
	}
}

// Policy decides whether a failed attempt is retried. Decide is a pure
// function of its inputs.
type Policy struct {
	config *Config
}

func NewPolicy(config *Config) *Policy {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	merged := &Config{
		MaxAttempts:    make(map[apperrors.Category]int, len(apperrors.Categories)),
		BaseDelay:      config.BaseDelay,
		MaxDelay:       config.MaxDelay,
		JitterFraction: config.JitterFraction,
	}
	for _, c := range apperrors.Categories {
		if n, ok := config.MaxAttempts[c]; ok {
			merged.MaxAttempts[c] = n
		} else {
			merged.MaxAttempts[c] = defaults.MaxAttempts[c]
		}
	}
	if merged.MaxDelay > 0 && merged.MaxDelay < merged.BaseDelay {
		merged.MaxDelay = merged.BaseDelay
	}
	return &Policy{config: merged}
}

// MaxAttempts returns the attempt budget for a category. Unknown categories
// get the UNKNOWN_ERROR budget.
func (p *Policy) MaxAttempts(category apperrors.Category) int {
	if !category.Valid() {
		category = apperrors.CategoryUnknown
	}
	return p.config.MaxAttempts[category]
}

// Decide returns the decision after attempt (1-based) failed with category.
func (p *Policy) Decide(category apperrors.Category, attempt int) Decision {
	if !category.Valid() {
		category = apperrors.CategoryUnknown
	}
	max := p.MaxAttempts(category)
	d := Decision{Category: category, Attempt: attempt, MaxAttempts: max, Action: GiveUp}

	if attempt < 1 || attempt >= max {
		return d
	}

	if category == apperrors.CategoryTimeout {
		d.Action = RetryNow
		return d
	}

	return p.delayed(d)
}

// Deferred turns an immediate retry into a backed-off one. Callers use it when
// the failed attempt may still exist on the service, such as a submit that
// timed out before the response arrived.
func (p *Policy) Deferred(d Decision) Decision {
	if d.Action != RetryNow {
		return d
	}
	return p.delayed(d)
}

func (p *Policy) delayed(d Decision) Decision {
	d.Action = RetryAfter
	d.Delay = p.backoff(d.Attempt)
	d.Spread = time.Duration(float64(d.Delay) * p.config.JitterFraction)
	return d
}

func (p *Policy) backoff(attempt int) time.Duration {
	delay := p.config.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.config.MaxDelay > 0 && delay >= p.config.MaxDelay {
			return p.config.MaxDelay
		}
	}
	if p.config.MaxDelay > 0 && delay > p.config.MaxDelay {
		return p.config.MaxDelay
	}
	return delay
}
