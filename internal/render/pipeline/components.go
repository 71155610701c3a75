// internal/render/pipeline/components.go
package pipeline

import (
	"time"

	"render-workers/internal/common/config"
	apperrors "render-workers/internal/common/errors"
	"render-workers/internal/render/monitor"
	"render-workers/internal/render/readiness"
	"render-workers/internal/render/retry"
	"render-workers/internal/render/timing"
	"render-workers/internal/renderclient"
)

// renderJobMargin is added on top of the monitor ceiling so Zeebe does not
// hand a render-video job to another worker while its run is still writing.
const renderJobMargin = time.Minute

func RenderClientConfig(c config.RenderConfig) *renderclient.Config {
	return &renderclient.Config{
		BaseURL:    c.BaseURL,
		APIKey:     c.APIKey,
		Timeout:    config.GetDuration(c.Timeout),
		Resolution: c.Resolution,
		Quality:    c.Quality,
	}
}

// RetryConfig maps category names from the config file onto categories.
// Names are validated at load time, so unknown keys are skipped here.
func RetryConfig(c config.RetryConfig) *retry.Config {
	attempts := make(map[apperrors.Category]int, len(c.MaxAttempts))
	for name, n := range c.MaxAttempts {
		if category, ok := apperrors.ParseCategory(name); ok {
			attempts[category] = n
		}
	}
	return &retry.Config{
		MaxAttempts:    attempts,
		BaseDelay:      config.GetDuration(c.BaseDelay),
		MaxDelay:       config.GetDuration(c.MaxDelay),
		JitterFraction: c.JitterFraction,
	}
}

func MonitorConfig(c config.MonitorConfig) *monitor.Config {
	return &monitor.Config{
		InitialDelay: config.GetDuration(c.InitialDelay),
		PollInterval: config.GetDuration(c.PollInterval),
		PollJitter:   config.GetDuration(c.PollJitter),
		MaxPolls:     c.MaxPolls,
		Ceiling:      config.GetDuration(c.Ceiling),
	}
}

func ComposerConfig(c config.ComposerConfig) *timing.Config {
	return &timing.Config{
		IntroSeconds:  c.IntroSeconds,
		ItemSeconds:   c.ItemSeconds,
		OutroSeconds:  c.OutroSeconds,
		ItemCount:     c.ItemCount,
		TargetSeconds: c.TargetSeconds,
	}
}

// GateConfig keeps the gate and the composer on the same item count. Empty
// field lists fall back to the gate defaults.
func GateConfig(cfg *config.Config) *readiness.Config {
	gc := readiness.DefaultConfig()
	gc.ItemCount = cfg.Composer.ItemCount
	if len(cfg.Readiness.PlatformFields) > 0 {
		gc.PlatformFields = cfg.Readiness.PlatformFields
	}
	if len(cfg.Readiness.SEOFields) > 0 {
		gc.SEOFields = cfg.Readiness.SEOFields
	}
	return gc
}

// RenderWorkerConfig stretches the job timeout past the monitor ceiling.
func RenderWorkerConfig(wcfg config.WorkerConfig, m config.MonitorConfig) config.WorkerConfig {
	minTimeout := m.Ceiling + int(renderJobMargin/time.Millisecond)
	if wcfg.Timeout < minTimeout {
		wcfg.Timeout = minTimeout
	}
	return wcfg
}
