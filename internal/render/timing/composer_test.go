package timing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-workers/internal/common/logger"
	"render-workers/internal/render/model"
	"render-workers/internal/testsupport"
)

func TestComposer_Compose_OrderAndDuration(t *testing.T) {
	c := NewComposer(DefaultConfig(), logger.NewTestLogger(t))
	rec := testsupport.ReadyRecord("rec-1", 5)

	plan, err := c.Compose(rec, 55, 5)
	require.NoError(t, err)

	ids := make([]string, 0, len(plan.Scenes))
	for _, s := range plan.Scenes {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"intro", "item-5", "item-4", "item-3", "item-2", "item-1", "outro"}, ids)
	assert.Equal(t, 55, plan.TotalDurationSeconds)
	assert.Equal(t, plan.TotalDurationSeconds, plan.SceneDurationSum())
	assert.Equal(t, "rec-1", plan.RecordID)

	best := plan.Scenes[5]
	assert.Equal(t, model.RoleItem, best.Role)
	assert.Equal(t, 1, best.Rank)
	assert.Equal(t, 9, best.DurationSeconds)
	assert.Equal(t, "Blender 1", best.Title)
	assert.Equal(t, "199.99", best.Price)
	require.Len(t, best.MediaRefs, 1)
	assert.Equal(t, "https://cdn.example.com/rec-1/item1.jpg", best.MediaRefs[0].URL)
	assert.Equal(t, model.MediaImage, best.MediaRefs[0].Kind)
	assert.Equal(t, "https://cdn.example.com/rec-1/item1.mp3", best.NarrationRef.URL)
	assert.Equal(t, model.MediaAudio, best.NarrationRef.Kind)

	intro := plan.Scenes[0]
	assert.Equal(t, "These five blenders crushed the competition.", intro.Caption)
	assert.Len(t, intro.MediaRefs, 1)
	assert.Empty(t, plan.Scenes[6].MediaRefs)
}

func TestComposer_Compose_RanksDescend(t *testing.T) {
	c := NewComposer(&Config{IntroSeconds: 4, ItemSeconds: 8, OutroSeconds: 6, ItemCount: 3, TargetSeconds: 34}, logger.NewNoOpLogger())

	plan, err := c.ComposeDefault(testsupport.ReadyRecord("rec", 3))
	require.NoError(t, err)

	var ranks []int
	for _, s := range plan.Scenes {
		if s.Role == model.RoleItem {
			ranks = append(ranks, s.Rank)
		}
	}
	assert.Equal(t, []int{3, 2, 1}, ranks)
	assert.Equal(t, 34, plan.SceneDurationSum())
}

func TestComposer_Compose_MissingPhotos(t *testing.T) {
	c := NewComposer(DefaultConfig(), logger.NewTestLogger(t))
	rec := testsupport.ReadyRecord("rec-a", 5, testsupport.Without("ProductNo2Photo", "ProductNo4Photo"))

	plan, err := c.Compose(rec, 55, 5)

	require.Error(t, err)
	var compErr *CompositionError
	require.True(t, errors.As(err, &compErr))
	assert.ElementsMatch(t, []string{"ProductNo2Photo", "ProductNo4Photo"}, compErr.Missing)
	assert.Empty(t, plan.Scenes)
	assert.Contains(t, err.Error(), "ProductNo4Photo")
}

func TestComposer_Compose_MissingNarration(t *testing.T) {
	c := NewComposer(DefaultConfig(), logger.NewTestLogger(t))
	rec := testsupport.ReadyRecord("rec", 5, testsupport.Without(model.FieldIntroNarration, "ProductNo3Narration"))

	_, err := c.Compose(rec, 55, 5)

	var compErr *CompositionError
	require.True(t, errors.As(err, &compErr))
	assert.Equal(t, []string{model.FieldIntroNarration, "ProductNo3Narration"}, compErr.Missing)
}

func TestComposer_Compose_TargetMismatch(t *testing.T) {
	tests := []struct {
		name      string
		target    int
		itemCount int
	}{
		{name: "target too long", target: 60, itemCount: 5},
		{name: "item count changes total", target: 55, itemCount: 4},
		{name: "no items", target: 10, itemCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewComposer(DefaultConfig(), logger.NewTestLogger(t))

			_, err := c.Compose(testsupport.ReadyRecord("rec", 5), tt.target, tt.itemCount)

			var compErr *CompositionError
			require.True(t, errors.As(err, &compErr))
			assert.NotEmpty(t, compErr.Reason)
			assert.Empty(t, compErr.Missing)
		})
	}
}

func TestComposer_Compose_CaptionFallback(t *testing.T) {
	c := NewComposer(DefaultConfig(), logger.NewTestLogger(t))
	rec := testsupport.ReadyRecord("rec", 5, testsupport.Without("ProductNo2Script"))

	plan, err := c.Compose(rec, 55, 5)
	require.NoError(t, err)

	for _, s := range plan.Scenes {
		switch s.ID {
		case "item-2":
			assert.Equal(t, "Blender 2 description", s.Caption)
		case "item-3":
			assert.Equal(t, "At number 3, blender 3.", s.Caption)
		}
	}
}
