// Package metrics instruments fleetd with OpenTelemetry metrics: active
// worker/session gauges, prompt counters, and a prompt-latency histogram,
// exported via a Prometheus collector.
//
// Grounded on _examples/MrWong99-glyphoxa/internal/observe/metrics.go's
// NewMetrics/DefaultMetrics construction pattern — the teacher itself only
// depends on go.opentelemetry.io/otel indirectly, so this package enriches
// from the rest of the retrieval pack rather than the teacher proper.
package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/modelfleet/fleetd"

// Metrics holds every OpenTelemetry instrument fleetd records to.
type Metrics struct {
	ActiveWorkers  metric.Int64UpDownCounter
	ActiveSessions metric.Int64UpDownCounter

	PromptsStarted  metric.Int64Counter
	PromptsCompleted metric.Int64Counter
	PromptsErrored   metric.Int64Counter
	PromptsCancelled metric.Int64Counter

	PromptDuration metric.Float64Histogram
}

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// New builds a Metrics instance against the given MeterProvider.
func New(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.ActiveWorkers, err = m.Int64UpDownCounter("fleetd.active_workers",
		metric.WithDescription("Number of currently loaded Model Workers.")); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("fleetd.active_sessions",
		metric.WithDescription("Number of currently open sessions across all workers.")); err != nil {
		return nil, err
	}
	if met.PromptsStarted, err = m.Int64Counter("fleetd.prompts.started",
		metric.WithDescription("Total prompts started, by model.")); err != nil {
		return nil, err
	}
	if met.PromptsCompleted, err = m.Int64Counter("fleetd.prompts.completed",
		metric.WithDescription("Total prompts completed successfully, by model.")); err != nil {
		return nil, err
	}
	if met.PromptsErrored, err = m.Int64Counter("fleetd.prompts.errored",
		metric.WithDescription("Total prompts that ended in an error, by model.")); err != nil {
		return nil, err
	}
	if met.PromptsCancelled, err = m.Int64Counter("fleetd.prompts.cancelled",
		metric.WithDescription("Total prompts that ended via interrupt_session, by model.")); err != nil {
		return nil, err
	}
	if met.PromptDuration, err = m.Float64Histogram("fleetd.prompt.duration",
		metric.WithDescription("Latency from prompt_session to terminal event, by model."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// InitProvider registers a Prometheus-backed MeterProvider as the global
// OpenTelemetry MeterProvider, so that Default (or any other
// otel.GetMeterProvider caller) exports through the exporter, which
// registers with the default Prometheus registry served by
// promhttp.Handler. It returns the provider's shutdown func. Call once,
// from cmd/fleetd.
func InitProvider() (shutdown func(context.Context) error, err error) {
	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExp))
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

// Default returns the package-level Metrics instance, built against the
// global MeterProvider on first call.
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = New(otel.GetMeterProvider())
		if err != nil {
			panic("metrics: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordPromptStarted increments PromptsStarted for modelID.
func (m *Metrics) RecordPromptStarted(ctx context.Context, modelID string) {
	m.PromptsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("model_id", modelID)))
}

// RecordPromptEnded records the terminal outcome of one prompt (one of
// "completed", "errored", "cancelled") and its duration in seconds.
func (m *Metrics) RecordPromptEnded(ctx context.Context, modelID, outcome string, durationSeconds float64) {
	attrs := metric.WithAttributes(attribute.String("model_id", modelID))
	switch outcome {
	case "completed":
		m.PromptsCompleted.Add(ctx, 1, attrs)
	case "errored":
		m.PromptsErrored.Add(ctx, 1, attrs)
	case "cancelled":
		m.PromptsCancelled.Add(ctx, 1, attrs)
	}
	m.PromptDuration.Record(ctx, durationSeconds, attrs)
}
