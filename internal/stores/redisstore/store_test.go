package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "render-workers/internal/common/errors"
	"render-workers/internal/common/logger"
	"render-workers/internal/render/model"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return New(client, "record", logger.NewTestLogger(t)), mr
}

func TestStore_UpdateThenGet(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	err := store.Update(ctx, "rec-1", map[string]any{
		model.FieldVideoTitle:        "Top 5 Blenders",
		"ProductNo1Price":            199.99,
		"ProductNo1Reviews":          1200,
		model.FieldIntroTimingStatus: model.ValueApproved,
		model.FieldRenderUpdatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		model.FieldRenderFailureLog:  []map[string]string{{"category": "QUOTA_ERROR"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "199.99", mr.HGet("record:rec-1", "ProductNo1Price"))

	rec, err := store.Get(ctx, "rec-1")
	require.NoError(t, err)

	assert.Equal(t, "rec-1", rec.ID)
	assert.Equal(t, "Top 5 Blenders", rec.String(model.FieldVideoTitle))
	assert.Equal(t, "1200", rec.String("ProductNo1Reviews"))
	assert.Equal(t, "2026-01-02T03:04:05Z", rec.String(model.FieldRenderUpdatedAt))
	assert.JSONEq(t, `[{"category":"QUOTA_ERROR"}]`, rec.String(model.FieldRenderFailureLog))
	assert.True(t, rec.Has(model.FieldIntroTimingStatus))
}

func TestStore_SchemaIncludesFieldsOfOtherRecords(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, "rec-1", map[string]any{"IntroNarration": "https://cdn.example.com/a.mp3"}))
	require.NoError(t, store.Update(ctx, "rec-2", map[string]any{"VideoTitle": "x"}))

	rec, err := store.Get(ctx, "rec-2")
	require.NoError(t, err)

	assert.Equal(t, []string{"IntroNarration", "VideoTitle"}, rec.Schema)
	assert.True(t, rec.Has("IntroNarration"))
	assert.False(t, rec.Present("IntroNarration"))
}

func TestStore_GetNotFound(t *testing.T) {
	store, _ := setupStore(t)

	_, err := store.Get(context.Background(), "missing")

	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeRecordNotFound, stdErr.Code)
}

func TestStore_UpdateEmptyIsNoop(t *testing.T) {
	store, mr := setupStore(t)

	require.NoError(t, store.Update(context.Background(), "rec-1", nil))
	assert.False(t, mr.Exists("record:rec-1"))
}

func TestStore_GetFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := New(client, "record", logger.NewTestLogger(t))

	mock.ExpectHGetAll("record:rec-1").SetErr(errors.New("connection reset by peer"))

	_, err := store.Get(context.Background(), "rec-1")

	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeRecordStoreFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetNoSchema(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := New(client, "record", logger.NewTestLogger(t))

	mock.ExpectHGetAll("record:rec-1").SetVal(map[string]string{"VideoTitle": "x"})
	mock.ExpectSMembers("record:schema").SetVal([]string{})

	rec, err := store.Get(context.Background(), "rec-1")

	require.NoError(t, err)
	assert.Nil(t, rec.Schema)
	assert.True(t, rec.Has("VideoTitle"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{in: nil, want: ""},
		{in: "x", want: "x"},
		{in: 3, want: "3"},
		{in: int64(7), want: "7"},
		{in: 2.5, want: "2.5"},
		{in: true, want: "true"},
		{in: model.StatusTimedOut, want: "TimedOut"},
		{in: apperrors.CategoryQuota, want: "QUOTA_ERROR"},
		{in: []string{"a"}, want: `["a"]`},
	}
	for _, tt := range tests {
		got, err := encodeValue(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
