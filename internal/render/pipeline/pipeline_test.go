package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-workers/internal/common/config"
	"render-workers/internal/common/logger"
	"render-workers/internal/render/model"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Store.Backend = "redis"
	cfg.Store.KeyPrefix = "record"
	cfg.Render.BaseURL = "http://render.invalid"
	cfg.Composer = config.ComposerConfig{IntroSeconds: 5, ItemSeconds: 9, OutroSeconds: 5, ItemCount: 5, TargetSeconds: 55}
	cfg.Monitor = config.MonitorConfig{InitialDelay: 1000, PollInterval: 1000, MaxPolls: 3, Ceiling: 60000}
	cfg.Audit.Index = "render-outcomes"
	return cfg
}

func TestOpen_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := baseConfig()
	cfg.Database.Redis.Address = mr.Addr()

	p, err := Open(context.Background(), cfg, Options{Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)
	defer p.Close()

	require.NotNil(t, p.Orchestrator)
	require.NotNil(t, p.Gate)
	require.NoError(t, p.Ping(context.Background()))

	require.NoError(t, p.Store.Update(context.Background(), "rec-1", map[string]any{model.FieldKeywords: "blender"}))
	assert.Equal(t, "blender", mr.HGet("record:rec-1", model.FieldKeywords))

	outcome, err := p.Orchestrator.Run(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.False(t, outcome.Approved, "a sparse record never reaches the render service")
	assert.Equal(t, model.ReadinessNotReady, mr.HGet("record:rec-1", model.FieldReadinessStatus))
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := baseConfig()
	cfg.Store.Backend = "mongo"

	_, err := Open(context.Background(), cfg, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown backend "mongo"`)
}

func TestOpen_RetriesStoreConnection(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	cfg := baseConfig()
	cfg.Database.Redis.Address = addr

	var names []string
	retry := func(operation func() error, name string) error {
		names = append(names, name)
		if err := operation(); err == nil {
			return nil
		}
		names = append(names, name)
		return operation()
	}

	_, err = Open(context.Background(), cfg, Options{Retry: retry, Logger: logger.NewTestLogger(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record store")
	assert.Equal(t, []string{"Redis connection", "Redis connection"}, names)
}

func TestOpen_AuditEnabled(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	var (
		mu    sync.Mutex
		paths []string
	)
	es := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer es.Close()

	cfg := baseConfig()
	cfg.Database.Redis.Address = mr.Addr()
	cfg.Database.Elasticsearch.Addresses = []string{es.URL}
	cfg.Audit.Enabled = true

	p, err := Open(context.Background(), cfg, Options{Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)
	defer p.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, paths, "HEAD /render-outcomes", "index existence is checked at startup")
}

func TestPipeline_PingWithoutStore(t *testing.T) {
	p := &Pipeline{}
	assert.Error(t, p.Ping(context.Background()))
	assert.NoError(t, p.Close())
}
