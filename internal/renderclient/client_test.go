package renderclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "render-workers/internal/common/errors"
	"render-workers/internal/common/logger"
	"render-workers/internal/render/classifier"
	"render-workers/internal/render/model"
	"render-workers/internal/render/monitor"
	"render-workers/internal/render/timing"
	"render-workers/internal/testsupport"
)

func newTestClient(t *testing.T, url string) *Client {
	c := New(&Config{BaseURL: url + "/", APIKey: "test-key", Timeout: time.Second}, logger.NewTestLogger(t))
	c.newID = func() string { return "run-1" }
	return c
}

func composedPlan(t *testing.T) model.TimingPlan {
	plan, err := timing.NewComposer(nil, logger.NewNoOpLogger()).ComposeDefault(testsupport.ReadyRecord("rec-1", 5))
	require.NoError(t, err)
	return plan
}

func TestClient_Submit(t *testing.T) {
	var got movie
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/movies", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "project": "proj-42"})
	}))
	defer server.Close()

	jobID, err := newTestClient(t, server.URL).Submit(context.Background(), composedPlan(t))

	require.NoError(t, err)
	assert.Equal(t, "proj-42", jobID)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, "full-hd", got.Resolution)
	assert.Equal(t, 55, got.Duration)
	require.Len(t, got.Scenes, 7)
	assert.Equal(t, "item-5", got.Scenes[1].ID)
	assert.Equal(t, "item-1", got.Scenes[5].ID)

	total := 0
	for _, s := range got.Scenes {
		total += s.Duration
	}
	assert.Equal(t, 55, total)

	item := got.Scenes[5]
	require.Len(t, item.Elements, 2)
	assert.Equal(t, element{Type: "image", Src: "https://cdn.example.com/rec-1/item1.jpg"}, item.Elements[0])
	assert.Equal(t, element{Type: "audio", Src: "https://cdn.example.com/rec-1/item1.mp3"}, item.Elements[1])
	assert.Equal(t, "At number 1, blender 1.", item.Caption)
}

func TestClient_Submit_Errors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantStatus   int
		wantCategory apperrors.Category
	}{
		{name: "rate limited", status: 429, body: `{"message":"Too many requests"}`, wantStatus: 429, wantCategory: apperrors.CategoryQuota},
		{name: "bad template", status: 400, body: `{"success":false,"message":"unsupported style property 'glow'"}`, wantStatus: 400, wantCategory: apperrors.CategoryTemplate},
		{name: "server error html", status: 502, body: `<html>bad gateway</html>`, wantStatus: 502, wantCategory: apperrors.CategoryNetwork},
		{name: "success false", status: 200, body: `{"success":false,"message":"Not enough credits"}`, wantStatus: 200, wantCategory: apperrors.CategoryQuota},
		{name: "no project", status: 200, body: `{"success":true}`, wantStatus: 200, wantCategory: apperrors.CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(t, server.URL).Submit(context.Background(), composedPlan(t))

			var svcErr *ServiceError
			require.True(t, errors.As(err, &svcErr))
			assert.Equal(t, tt.wantStatus, svcErr.HTTPStatus())
			assert.Equal(t, tt.wantCategory, classifier.ClassifyError(err))
		})
	}
}

func TestClient_Submit_InvalidPayloadNotSent(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	plan := composedPlan(t)
	plan.Scenes[2].NarrationRef.URL = "not-a-url"

	_, err := newTestClient(t, server.URL).Submit(context.Background(), plan)

	require.Error(t, err)
	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodePlanInvalid, stdErr.Code)
	assert.Equal(t, apperrors.CategoryTemplate, classifier.ClassifyError(err))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestClient_Poll(t *testing.T) {
	tests := []struct {
		name string
		body string
		want monitor.PollResult
	}{
		{
			name: "processing",
			body: `{"success":true,"movie":{"status":"processing"}}`,
			want: monitor.PollResult{Status: monitor.PollProcessing},
		},
		{
			name: "done",
			body: `{"success":true,"movie":{"status":"DONE","url":" https://cdn.example.com/out.mp4 "}}`,
			want: monitor.PollResult{Status: monitor.PollDone, OutputURL: "https://cdn.example.com/out.mp4"},
		},
		{
			name: "error",
			body: `{"success":true,"movie":{"status":"error","message":"asset download failed"}}`,
			want: monitor.PollResult{Status: monitor.PollError, Message: "asset download failed"},
		},
		{
			name: "unrecognised passes through",
			body: `{"success":true,"movie":{"status":"exporting"}}`,
			want: monitor.PollResult{Status: monitor.PollStatus("exporting")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "proj 42", r.URL.Query().Get("project"))
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			got, err := newTestClient(t, server.URL).Poll(context.Background(), "proj 42")

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_Poll_Failures(t *testing.T) {
	t.Run("503", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := newTestClient(t, server.URL).Poll(context.Background(), "p")

		var svcErr *ServiceError
		require.True(t, errors.As(err, &svcErr))
		assert.Equal(t, "Service Unavailable", svcErr.Message)
		assert.Equal(t, apperrors.CategoryNetwork, classifier.ClassifyError(err))
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":`))
		}))
		defer server.Close()

		_, err := newTestClient(t, server.URL).Poll(context.Background(), "p")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode response")
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		_, err := newTestClient(t, url).Poll(context.Background(), "p")
		require.Error(t, err)
		assert.Equal(t, apperrors.CategoryNetwork, classifier.ClassifyError(err))
	})
}
