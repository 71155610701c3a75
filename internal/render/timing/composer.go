// internal/render/timing/composer.go
package timing

import (
	"fmt"
	"strings"

	"render-workers/internal/common/logger"
	"render-workers/internal/render/model"
)

// Config holds the fixed per-role scene durations in whole seconds.
type Config struct {
	IntroSeconds  int
	ItemSeconds   int
	OutroSeconds  int
	ItemCount     int
	TargetSeconds int
}

func DefaultConfig() *Config {
	return &Config{
		IntroSeconds:  5,
		ItemSeconds:   9,
		OutroSeconds:  5,
		ItemCount:     5,
		TargetSeconds: 55,
	}
}

// Total returns the runtime implied by the per-role durations.
func (c *Config) Total(itemCount int) int {
	return c.IntroSeconds + c.OutroSeconds + itemCount*c.ItemSeconds
}

// CompositionError reports why a plan could not be built. A plan is either
// complete or not produced at all.
type CompositionError struct {
	RecordID string
	Missing  []string
	Reason   string
}

func (e *CompositionError) Error() string {
	var parts []string
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	if len(e.Missing) > 0 {
		parts = append(parts, "missing media: "+strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("composition failed for record %s: %s", e.RecordID, strings.Join(parts, "; "))
}

// Composer builds timing plans from record snapshots.
type Composer struct {
	config *Config
	logger logger.Logger
}

func NewComposer(config *Config, log logger.Logger) *Composer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Composer{
		config: config,
		logger: log.WithFields(map[string]interface{}{"component": "timing-composer"}),
	}
}

// ComposeDefault composes with the configured target and item count.
func (c *Composer) ComposeDefault(rec model.Record) (model.TimingPlan, error) {
	return c.Compose(rec, c.config.TargetSeconds, c.config.ItemCount)
}

// Compose orders scenes intro, worst-ranked item through best-ranked item,
// then outro. Slot 1 holds the best-ranked item.
func (c *Composer) Compose(rec model.Record, targetSeconds, itemCount int) (model.TimingPlan, error) {
	if itemCount <= 0 {
		return model.TimingPlan{}, &CompositionError{
			RecordID: rec.ID,
			Reason:   fmt.Sprintf("item count must be positive, got %d", itemCount),
		}
	}
	if want := c.config.Total(itemCount); targetSeconds != want {
		return model.TimingPlan{}, &CompositionError{
			RecordID: rec.ID,
			Reason: fmt.Sprintf("target %ds cannot be met: intro %ds + outro %ds + %d items x %ds = %ds",
				targetSeconds, c.config.IntroSeconds, c.config.OutroSeconds, itemCount, c.config.ItemSeconds, want),
		}
	}

	var missing []string
	require := func(field string, kind model.MediaKind) model.MediaRef {
		u := rec.String(field)
		if u == "" {
			missing = append(missing, field)
		}
		return model.MediaRef{URL: u, Kind: kind}
	}
	optional := func(field string, kind model.MediaKind) []model.MediaRef {
		if u := rec.String(field); u != "" {
			return []model.MediaRef{{URL: u, Kind: kind}}
		}
		return []model.MediaRef{}
	}

	scenes := make([]model.SceneSpec, 0, itemCount+2)

	scenes = append(scenes, model.SceneSpec{
		ID:              "intro",
		Role:            model.RoleIntro,
		DurationSeconds: c.config.IntroSeconds,
		MediaRefs:       optional(model.FieldIntroPhoto, model.MediaImage),
		NarrationRef:    require(model.FieldIntroNarration, model.MediaAudio),
		Caption:         rec.String(model.FieldIntroHook),
	})

	for slot := itemCount; slot >= 1; slot-- {
		photo := require(model.ItemField(slot, model.SuffixPhoto), model.MediaImage)
		narration := require(model.ItemField(slot, model.SuffixNarration), model.MediaAudio)

		caption := rec.String(model.ItemField(slot, model.SuffixScript))
		if caption == "" {
			caption = rec.String(model.ItemField(slot, model.SuffixDescription))
		}

		scenes = append(scenes, model.SceneSpec{
			ID:              fmt.Sprintf("item-%d", slot),
			Role:            model.RoleItem,
			Rank:            slot,
			DurationSeconds: c.config.ItemSeconds,
			MediaRefs:       []model.MediaRef{photo},
			NarrationRef:    narration,
			Caption:         caption,
			Title:           rec.String(model.ItemField(slot, model.SuffixTitle)),
			Price:           rec.String(model.ItemField(slot, model.SuffixPrice)),
			Rating:          rec.String(model.ItemField(slot, model.SuffixRating)),
			Reviews:         rec.String(model.ItemField(slot, model.SuffixReviews)),
		})
	}

	scenes = append(scenes, model.SceneSpec{
		ID:              "outro",
		Role:            model.RoleOutro,
		DurationSeconds: c.config.OutroSeconds,
		MediaRefs:       optional(model.FieldOutroPhoto, model.MediaImage),
		NarrationRef:    require(model.FieldOutroNarration, model.MediaAudio),
		Caption:         rec.String(model.FieldOutroScript),
	})

	if len(missing) > 0 {
		c.logger.Warn("composition rejected", map[string]interface{}{
			"recordId": rec.ID,
			"missing":  missing,
		})
		return model.TimingPlan{}, &CompositionError{RecordID: rec.ID, Missing: missing}
	}

	plan := model.TimingPlan{
		RecordID:             rec.ID,
		Scenes:               scenes,
		TotalDurationSeconds: targetSeconds,
	}
	if sum := plan.SceneDurationSum(); sum != plan.TotalDurationSeconds {
		return model.TimingPlan{}, &CompositionError{
			RecordID: rec.ID,
			Reason:   fmt.Sprintf("scene durations sum to %ds, want %ds", sum, plan.TotalDurationSeconds),
		}
	}

	c.logger.Debug("timing plan composed", map[string]interface{}{
		"recordId": rec.ID,
		"scenes":   len(plan.Scenes),
		"seconds":  plan.TotalDurationSeconds,
	})
	return plan, nil
}
