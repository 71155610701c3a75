package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records per-outcome otel metrics exported through the
// Prometheus registry.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	runCounter    otelmetric.Int64Counter
	runDuration   otelmetric.Float64Histogram
	runAttempts   otelmetric.Int64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return newWithProvider(provider, serviceName)
}

func newWithProvider(provider *metric.MeterProvider, serviceName string) *Observability {
	meter := provider.Meter(serviceName)

	runCounter, _ := meter.Int64Counter(
		"render.runs",
		otelmetric.WithDescription("Render runs by final status"),
	)

	runDuration, _ := meter.Float64Histogram(
		"render.run.duration",
		otelmetric.WithDescription("Render run duration"),
		otelmetric.WithUnit("ms"),
	)

	runAttempts, _ := meter.Int64Histogram(
		"render.run.attempts",
		otelmetric.WithDescription("Submissions per render run"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		runCounter:    runCounter,
		runDuration:   runDuration,
		runAttempts:   runAttempts,
	}
}

// RecordOutcome records one finished orchestrator run.
func (o *Observability) RecordOutcome(ctx context.Context, status, category string, attempts int, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("status", status),
		attribute.String("category", category),
	)
	if o.runCounter != nil {
		o.runCounter.Add(ctx, 1, attrs)
	}
	if o.runDuration != nil {
		o.runDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
	if o.runAttempts != nil && attempts > 0 {
		o.runAttempts.Record(ctx, int64(attempts), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
