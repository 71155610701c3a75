// internal/audit/indexer.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	apperrors "render-workers/internal/common/errors"
	"render-workers/internal/common/logger"
	"render-workers/internal/render/model"
)

const DefaultIndex = "render-outcomes"

const indexMapping = `{
  "mappings": {
    "properties": {
      "recordId":  {"type": "keyword"},
      "runId":     {"type": "keyword"},
      "status":    {"type": "keyword"},
      "category":  {"type": "keyword"},
      "approved":  {"type": "boolean"},
      "jobId":     {"type": "keyword"},
      "outputUrl": {"type": "keyword"},
      "attempts":  {"type": "integer"},
      "reason":    {"type": "text"},
      "durationMs":{"type": "long"},
      "startedAt": {"type": "date"},
      "endedAt":   {"type": "date"},
      "failures":  {"type": "object", "enabled": false}
    }
  }
}`

// Indexer writes one document per run into Elasticsearch, keyed by run id.
type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	if index == "" {
		index = DefaultIndex
	}
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "audit-indexer", "index": index}),
	}
}

type document struct {
	RecordID   string               `json:"recordId"`
	RunID      string               `json:"runId"`
	Approved   bool                 `json:"approved"`
	Status     string               `json:"status,omitempty"`
	Category   string               `json:"category,omitempty"`
	JobID      string               `json:"jobId,omitempty"`
	OutputURL  string               `json:"outputUrl,omitempty"`
	Attempts   int                  `json:"attempts"`
	Reason     string               `json:"reason"`
	Missing    []string             `json:"missing,omitempty"`
	Pending    []string             `json:"pending,omitempty"`
	Rejected   []string             `json:"rejected,omitempty"`
	Failures   []model.FailureEvent `json:"failures,omitempty"`
	DurationMs int64                `json:"durationMs"`
	StartedAt  time.Time            `json:"startedAt"`
	EndedAt    time.Time            `json:"endedAt"`
}

func newDocument(o model.Outcome) document {
	return document{
		RecordID:   o.RecordID,
		RunID:      o.RunID,
		Approved:   o.Approved,
		Status:     string(o.Status),
		Category:   string(o.Category),
		JobID:      o.JobID,
		OutputURL:  o.OutputURL,
		Attempts:   o.Attempts,
		Reason:     o.Reason,
		Missing:    o.Report.Missing,
		Pending:    o.Report.Pending,
		Rejected:   o.Report.Rejected,
		Failures:   o.Failures,
		DurationMs: o.EndedAt.Sub(o.StartedAt).Milliseconds(),
		StartedAt:  o.StartedAt,
		EndedAt:    o.EndedAt,
	}
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists(
		[]string{i.index},
		i.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return apperrors.NewAuditIndexFailedError(err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = i.client.Indices.Create(
		i.index,
		i.client.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping))),
		i.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return apperrors.NewAuditIndexFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		// another replica won the race
		if bytes.Contains(body, []byte("resource_already_exists_exception")) {
			return nil
		}
		return apperrors.NewAuditIndexFailedError(fmt.Errorf("create index: %s: %s", res.Status(), body))
	}

	i.logger.Info("audit index created", nil)
	return nil
}

// IndexOutcome stores the outcome of one run. Re-indexing the same run
// overwrites its document.
func (i *Indexer) IndexOutcome(ctx context.Context, outcome model.Outcome) error {
	body, err := json.Marshal(newDocument(outcome))
	if err != nil {
		return apperrors.NewAuditIndexFailedError(err)
	}

	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithDocumentID(outcome.RunID),
		i.client.Index.WithContext(ctx),
	)
	if err != nil {
		return apperrors.NewAuditIndexFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return apperrors.NewAuditIndexFailedError(fmt.Errorf("index outcome: %s: %s", res.Status(), raw))
	}

	i.logger.Debug("outcome indexed", map[string]interface{}{
		"recordId": outcome.RecordID,
		"runId":    outcome.RunID,
		"status":   string(outcome.Status),
	})
	return nil
}
