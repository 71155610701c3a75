// internal/workers/render/render-video/models.go
package rendervideo

import "render-workers/internal/common/validation"

var inputSchema = validation.MustCompile(TaskType, `{
  "type": "object",
  "required": ["recordId"],
  "properties": {
    "recordId": {"type": "string", "minLength": 1}
  }
}`)

type Input struct {
	RecordID string `json:"recordId"`
}

type Output struct {
	RecordID      string   `json:"recordId"`
	RunID         string   `json:"runId"`
	Approved      bool     `json:"approved"`
	RenderStatus  string   `json:"renderStatus,omitempty"`
	VideoURL      string   `json:"videoUrl,omitempty"`
	RenderJobID   string   `json:"renderJobId,omitempty"`
	Attempts      int      `json:"attempts"`
	ErrorCategory string   `json:"errorCategory,omitempty"`
	Reason        string   `json:"reason"`
	Missing       []string `json:"missing,omitempty"`
	Pending       []string `json:"pending,omitempty"`
	Rejected      []string `json:"rejected,omitempty"`
}
