package camunda

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-workers/internal/common/errors"
)

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  errors.ErrorCode
		retryable bool
	}{
		{
			name:      "unavailable",
			err:       stderrors.New("rpc error: code = Unavailable desc = connection refused"),
			wantCode:  errors.ErrCodeServiceUnavailable,
			retryable: true,
		},
		{
			name:      "deadline",
			err:       stderrors.New("rpc error: code = DeadlineExceeded desc = context deadline exceeded"),
			wantCode:  "TIMEOUT_ERROR",
			retryable: true,
		},
		{
			name:     "unauthenticated",
			err:      stderrors.New("rpc error: code = Unauthenticated desc = invalid token"),
			wantCode: errors.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapZeebeError(tt.err, "topology")

			var stdErr *errors.StandardError
			require.True(t, stderrors.As(err, &stdErr))
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
			assert.Contains(t, stdErr.Error(), "topology")
		})
	}
}

func TestWorkerStop_Nil(t *testing.T) {
	var w *Worker
	assert.NotPanics(t, w.Stop)
}
