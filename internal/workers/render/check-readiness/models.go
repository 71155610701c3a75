// internal/workers/render/check-readiness/models.go
package checkreadiness

import "render-workers/internal/common/validation"

var inputSchema = validation.MustCompile(TaskType, `{
  "type": "object",
  "required": ["recordId"],
  "properties": {
    "recordId": {"type": "string", "minLength": 1},
    "persist": {"type": "boolean"}
  }
}`)

type Input struct {
	RecordID string `json:"recordId"`
	// Persist writes ReadinessStatus/ReadinessReason back to the record.
	Persist bool `json:"persist"`
}

type Output struct {
	RecordID string   `json:"recordId"`
	Ready    bool     `json:"ready"`
	Reason   string   `json:"reason"`
	Passed   int      `json:"passedChecks"`
	Missing  []string `json:"missing"`
	Pending  []string `json:"pending"`
	Rejected []string `json:"rejected"`
	Warnings []string `json:"warnings,omitempty"`
}
