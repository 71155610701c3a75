// internal/renderclient/payload.go
package renderclient

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"render-workers/internal/render/model"
)

type element struct {
	Type string `json:"type"`
	Src  string `json:"src"`
}

type scene struct {
	ID       string    `json:"id"`
	Role     string    `json:"role"`
	Duration int       `json:"duration"`
	Caption  string    `json:"caption,omitempty"`
	Title    string    `json:"title,omitempty"`
	Price    string    `json:"price,omitempty"`
	Rating   string    `json:"rating,omitempty"`
	Reviews  string    `json:"reviews,omitempty"`
	Elements []element `json:"elements"`
}

type movie struct {
	ID         string  `json:"id"`
	Resolution string  `json:"resolution"`
	Quality    string  `json:"quality"`
	Duration   int     `json:"duration"`
	Scenes     []scene `json:"scenes"`
}

type submitResponse struct {
	Success bool   `json:"success"`
	Project string `json:"project"`
	Message string `json:"message"`
}

type pollResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Movie   struct {
		Status  string `json:"status"`
		URL     string `json:"url"`
		Message string `json:"message"`
	} `json:"movie"`
}

// buildMovie converts a plan into the render service payload. Visual
// references come first, the narration track last.
func buildMovie(id string, plan model.TimingPlan, resolution, quality string) movie {
	m := movie{
		ID:         id,
		Resolution: resolution,
		Quality:    quality,
		Duration:   plan.TotalDurationSeconds,
		Scenes:     make([]scene, 0, len(plan.Scenes)),
	}
	for _, s := range plan.Scenes {
		elements := make([]element, 0, len(s.MediaRefs)+1)
		for _, ref := range s.MediaRefs {
			elements = append(elements, element{Type: string(ref.Kind), Src: ref.URL})
		}
		elements = append(elements, element{Type: string(model.MediaAudio), Src: s.NarrationRef.URL})

		m.Scenes = append(m.Scenes, scene{
			ID:       s.ID,
			Role:     string(s.Role),
			Duration: s.DurationSeconds,
			Caption:  s.Caption,
			Title:    s.Title,
			Price:    s.Price,
			Rating:   s.Rating,
			Reviews:  s.Reviews,
			Elements: elements,
		})
	}
	return m
}

const movieSchema = `{
  "type": "object",
  "required": ["id", "resolution", "quality", "duration", "scenes"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "resolution": {"type": "string", "enum": ["sd", "hd", "full-hd", "4k", "custom"]},
    "quality": {"type": "string", "enum": ["low", "medium", "high"]},
    "duration": {"type": "integer", "minimum": 1},
    "scenes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "role", "duration", "elements"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "role": {"type": "string", "enum": ["intro", "item", "outro"]},
          "duration": {"type": "integer", "minimum": 1},
          "caption": {"type": "string"},
          "elements": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["type", "src"],
              "properties": {
                "type": {"type": "string", "enum": ["image", "audio", "video"]},
                "src": {"type": "string", "pattern": "^https?://[^\\s]+$"}
              }
            }
          }
        }
      }
    }
  }
}`

var movieSchemaLoader = gojsonschema.NewStringLoader(movieSchema)

// validateMovie checks the payload against the render service schema. The
// document is round-tripped through JSON so struct tags apply.
func validateMovie(m movie) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	result, err := gojsonschema.Validate(movieSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("payload validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
