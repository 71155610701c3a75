package database

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-workers/internal/common/config"
)

func TestNewRedis_Ping(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func TestNewPostgres_RequiresHost(t *testing.T) {
	_, err := NewPostgres(config.PostgresConfig{})
	assert.Error(t, err)
}

func TestNewPostgres_OpensLazily(t *testing.T) {
	client, err := NewPostgres(config.PostgresConfig{
		Host:     "127.0.0.1",
		Port:     5432,
		Database: "render",
		User:     "render",
		SSLMode:  "disable",
	})
	require.NoError(t, err)
	assert.NotNil(t, client.DB)
	assert.NoError(t, client.Close())
}

func TestElasticsearch_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, err := NewElasticsearch(config.ElasticsearchConfig{URL: server.URL})
	require.NoError(t, err)

	assert.NoError(t, client.Ping(context.Background()))
}

func TestNewElasticsearch_RequiresAddress(t *testing.T) {
	_, err := NewElasticsearch(config.ElasticsearchConfig{})
	assert.Error(t, err)
}
