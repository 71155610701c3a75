package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestObservability_RecordOutcome(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	o := newWithProvider(provider, "render-workers-test")

	o.RecordOutcome(context.Background(), "Done", "", 1, 1500*time.Millisecond)
	o.RecordOutcome(context.Background(), "Failed", "QUOTA_ERROR", 1, time.Second)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]bool{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names[m.Name] = true
		if m.Name == "render.runs" {
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			assert.Len(t, sum.DataPoints, 2)
		}
	}
	assert.True(t, names["render.runs"])
	assert.True(t, names["render.run.duration"])
	assert.True(t, names["render.run.attempts"])
}

func TestObservability_NilSafe(t *testing.T) {
	var o *Observability
	assert.NotPanics(t, func() {
		o.RecordOutcome(context.Background(), "Done", "", 1, time.Second)
		o.Shutdown()
	})
}

func TestNewTracing_NoEndpoint(t *testing.T) {
	tr, err := NewTracing(TracingConfig{ServiceName: "render-workers"})
	require.NoError(t, err)
	assert.NoError(t, tr.Shutdown())
	assert.NotNil(t, Tracer("test"))
}
