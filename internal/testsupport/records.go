// Package testsupport builds content record fixtures shared by package tests.
package testsupport

import (
	"fmt"

	"render-workers/internal/render/model"
)

// RecordOption customizes a generated record.
type RecordOption func(map[string]any)

// ReadyRecord returns a record that passes every readiness check and composes
// into a valid plan for itemCount items.
func ReadyRecord(id string, itemCount int, opts ...RecordOption) model.Record {
	fields := map[string]any{
		model.FieldVideoTitle:         "Top 5 Blenders of 2026",
		model.FieldVideoDescription:   "We tested the best blenders so you don't have to.",
		model.FieldYouTubeTitle:       "Top 5 Blenders (2026)",
		model.FieldYouTubeDescription: "Full breakdown of the best blenders.",
		model.FieldTikTokTitle:        "Best blenders ranked",
		model.FieldTikTokDescription:  "Number one will surprise you",
		model.FieldInstagramTitle:     "Blender countdown",
		model.FieldInstagramCaption:   "Which one would you pick?",
		model.FieldKeywords:           "blender, kitchen, smoothie",
		model.FieldHashtags:           "#blender #kitchen",
		model.FieldIntroHook:          "These five blenders crushed the competition.",
		model.FieldIntroNarration:     fmt.Sprintf("https://cdn.example.com/%s/intro.mp3", id),
		model.FieldIntroPhoto:         fmt.Sprintf("https://cdn.example.com/%s/intro.jpg", id),
		model.FieldIntroTimingStatus:  model.ValueApproved,
		model.FieldOutroScript:        "Links are in the description.",
		model.FieldOutroNarration:     fmt.Sprintf("https://cdn.example.com/%s/outro.mp3", id),
		model.FieldOutroTimingStatus:  model.ValueApproved,
	}

	for i := 1; i <= itemCount; i++ {
		fields[model.ItemField(i, model.SuffixTitle)] = fmt.Sprintf("Blender %d", i)
		fields[model.ItemField(i, model.SuffixDescription)] = fmt.Sprintf("Blender %d description", i)
		fields[model.ItemField(i, model.SuffixPrice)] = price(i)
		fields[model.ItemField(i, model.SuffixRating)] = 4.5
		fields[model.ItemField(i, model.SuffixReviews)] = 1000 * i
		fields[model.ItemField(i, model.SuffixPhoto)] = fmt.Sprintf("https://cdn.example.com/%s/item%d.jpg", id, i)
		fields[model.ItemField(i, model.SuffixAffiliate)] = fmt.Sprintf("https://shop.example.com/item%d?tag=aff", i)
		fields[model.ItemField(i, model.SuffixNarration)] = fmt.Sprintf("https://cdn.example.com/%s/item%d.mp3", id, i)
		fields[model.ItemField(i, model.SuffixScript)] = fmt.Sprintf("At number %d, blender %d.", i, i)
		fields[model.ItemField(i, model.SuffixTimingStatus)] = model.ValueApproved
	}

	for _, opt := range opts {
		opt(fields)
	}

	return model.Record{ID: id, Fields: fields}
}

var prices = []float64{199.99, 149.5, 99, 79.95, 49.99}

func price(slot int) float64 {
	if slot <= len(prices) {
		return prices[slot-1]
	}
	return float64(slot * 10)
}

// Without removes fields from the record.
func Without(names ...string) RecordOption {
	return func(fields map[string]any) {
		for _, n := range names {
			delete(fields, n)
		}
	}
}

// With sets a field value.
func With(name string, value any) RecordOption {
	return func(fields map[string]any) {
		fields[name] = value
	}
}
