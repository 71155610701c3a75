package rendervideo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "render-workers/internal/common/errors"
	"render-workers/internal/common/logger"
	"render-workers/internal/render/model"
	"render-workers/internal/render/monitor"
	"render-workers/internal/render/orchestrator"
)

type stubRenderer struct {
	outcome model.Outcome
	err     error
	calls   []string
}

func (s *stubRenderer) Run(_ context.Context, recordID string) (model.Outcome, error) {
	s.calls = append(s.calls, recordID)
	return s.outcome, s.err
}

func createTestHandler(t *testing.T, r Renderer) *Handler {
	return NewHandler(&Config{}, r, logger.NewTestLogger(t))
}

func requireCode(t *testing.T, err error, code apperrors.ErrorCode) *apperrors.StandardError {
	t.Helper()
	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr), "expected StandardError, got %v", err)
	assert.Equal(t, code, stdErr.Code)
	return stdErr
}

func TestHandler_Execute_Done(t *testing.T) {
	r := &stubRenderer{outcome: model.Outcome{
		RecordID:  "rec-1",
		RunID:     "run-1",
		Approved:  true,
		Status:    model.StatusDone,
		JobID:     "job-1",
		OutputURL: "https://cdn.example.com/out.mp4",
		Attempts:  2,
		Reason:    "render completed",
	}}
	h := createTestHandler(t, r)

	output, err := h.Execute(context.Background(), &Input{RecordID: "rec-1"})

	require.NoError(t, err)
	assert.Equal(t, []string{"rec-1"}, r.calls)
	assert.Equal(t, "Done", output.RenderStatus)
	assert.Equal(t, "https://cdn.example.com/out.mp4", output.VideoURL)
	assert.Equal(t, "job-1", output.RenderJobID)
	assert.Equal(t, 2, output.Attempts)
	assert.True(t, output.Approved)
}

func TestHandler_Execute_Outcomes(t *testing.T) {
	tests := []struct {
		name         string
		outcome      model.Outcome
		wantCode     apperrors.ErrorCode
		wantCategory apperrors.Category
	}{
		{
			name: "not ready",
			outcome: model.Outcome{
				RecordID: "rec-1",
				Report:   model.ReadinessReport{Pending: []string{"IntroTimingStatus"}},
				Reason:   "pending: IntroTimingStatus",
			},
			wantCode: apperrors.ErrCodeRecordNotReady,
		},
		{
			name: "quota failure",
			outcome: model.Outcome{
				RecordID: "rec-1",
				Approved: true,
				Status:   model.StatusFailed,
				Category: apperrors.CategoryQuota,
				Reason:   "QUOTA_ERROR after 1 attempt(s): credits exhausted",
			},
			wantCode:     apperrors.ErrCodeRenderFailed,
			wantCategory: apperrors.CategoryQuota,
		},
		{
			name: "timed out",
			outcome: model.Outcome{
				RecordID: "rec-1",
				Approved: true,
				Status:   model.StatusTimedOut,
				Category: apperrors.CategoryTimeout,
				Reason:   "no terminal state within 20m0s (attempt 1)",
			},
			wantCode:     apperrors.ErrCodeRenderTimedOut,
			wantCategory: apperrors.CategoryTimeout,
		},
		{
			name: "composition failed",
			outcome: model.Outcome{
				RecordID: "rec-1",
				Approved: true,
				Status:   model.StatusFailed,
				Category: apperrors.CategoryAsset,
				Reason:   "missing media: ProductNo2Photo",
				Failures: []model.FailureEvent{{Category: apperrors.CategoryAsset, Phase: model.PhaseCompose}},
			},
			wantCode:     apperrors.ErrCodeCompositionFailed,
			wantCategory: apperrors.CategoryAsset,
		},
		{
			name: "done without url",
			outcome: model.Outcome{
				RecordID: "rec-1",
				Approved: true,
				Status:   model.StatusDone,
				Category: apperrors.CategoryUnknown,
			},
			wantCode:     apperrors.ErrCodeRenderFailed,
			wantCategory: apperrors.CategoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, &stubRenderer{outcome: tt.outcome})

			output, err := h.Execute(context.Background(), &Input{RecordID: "rec-1"})

			stdErr := requireCode(t, err, tt.wantCode)
			assert.False(t, stdErr.Retryable)
			if tt.wantCategory != "" {
				assert.Equal(t, tt.wantCategory, stdErr.Category)
			}
			require.NotNil(t, output)
			assert.Equal(t, tt.outcome.Reason, output.Reason)
		})
	}
}

func TestHandler_Execute_RunErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  apperrors.ErrorCode
		retryable bool
	}{
		{
			name:      "already running",
			err:       fmt.Errorf("%w: rec-1", orchestrator.ErrAlreadyRunning),
			wantCode:  apperrors.ErrCodeRenderInFlight,
			retryable: true,
		},
		{
			name:      "cancelled",
			err:       fmt.Errorf("%w: context canceled", monitor.ErrCancelled),
			wantCode:  apperrors.ErrCodeServiceUnavailable,
			retryable: true,
		},
		{
			name:      "store failure passes through",
			err:       apperrors.NewRecordStoreFailedError("get", errors.New("connection refused")),
			wantCode:  apperrors.ErrCodeRecordStoreFailed,
			retryable: true,
		},
		{
			name:     "record not found",
			err:      apperrors.NewRecordNotFoundError("rec-1"),
			wantCode: apperrors.ErrCodeRecordNotFound,
		},
		{
			name:      "unexpected",
			err:       errors.New("boom"),
			wantCode:  apperrors.ErrCodeServiceUnavailable,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, &stubRenderer{err: tt.err})

			output, err := h.Execute(context.Background(), &Input{RecordID: "rec-1"})

			assert.Nil(t, output)
			stdErr := requireCode(t, err, tt.wantCode)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
		})
	}
}

func TestHandler_Execute_MissingRecordID(t *testing.T) {
	r := &stubRenderer{}
	h := createTestHandler(t, r)

	_, err := h.Execute(context.Background(), &Input{})

	requireCode(t, err, apperrors.ErrCodeInvalidInput)
	assert.Empty(t, r.calls)
}

func TestNewHandler_DefaultConfig(t *testing.T) {
	h := NewHandler(nil, &stubRenderer{}, logger.NewTestLogger(t))
	assert.Equal(t, LoadConfig().Timeout, h.config.Timeout)
}
