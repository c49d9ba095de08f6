// Package observe provides observability primitives for podforge:
// OpenTelemetry metrics with a Prometheus exporter bridge, so long-running
// batch conversions can be watched from the standard /metrics endpoint.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all podforge metrics.
const meterName = "github.com/podforge-ai/podforge"

// Pipeline stage labels used with [Metrics.RecordStage].
const (
	StageClean      = "clean"
	StageTranscribe = "transcribe"
	StageChunk      = "chunk"
	StageReconcile  = "reconcile"
	StageScript     = "script"
	StageSynthesize = "synthesize"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// StageDuration tracks wall-clock latency per pipeline stage. Use with
	// attribute.String("stage", ...), see the Stage* constants.
	StageDuration metric.Float64Histogram

	// ProviderRequests counts hosted-service API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts hosted-service errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// TranscriptChunks records how many chunks each conversion produced.
	TranscriptChunks metric.Int64Histogram

	// ScriptWords records the word count of each generated script.
	ScriptWords metric.Int64Histogram
}

// stageBuckets defines histogram bucket boundaries (in seconds) sized for
// batch stages that span anywhere from sub-second chunking to multi-minute
// model calls.
var stageBuckets = []float64{
	0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("podforge.stage.duration",
		metric.WithDescription("Wall-clock latency per pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("podforge.provider.requests",
		metric.WithDescription("Hosted-service API calls."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("podforge.provider.errors",
		metric.WithDescription("Hosted-service API errors."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptChunks, err = m.Int64Histogram("podforge.transcript.chunks",
		metric.WithDescription("Chunks produced per conversion."),
	); err != nil {
		return nil, err
	}
	if met.ScriptWords, err = m.Int64Histogram("podforge.script.words",
		metric.WithDescription("Word count of each generated script."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RecordStage records the elapsed time since start for the given stage.
// Typical use:
//
//	defer m.RecordStage(ctx, observe.StageReconcile, time.Now())
func (m *Metrics) RecordStage(ctx context.Context, stage string, start time.Time) {
	m.StageDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordProviderCall counts one provider API call, splitting success and
// failure.
func (m *Metrics) RecordProviderCall(ctx context.Context, provider, kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		))
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide [Metrics] instance backed by the
// global OTel meter provider. Initialised lazily on first use; instrument
// creation errors panic since they indicate a programming error (duplicate
// registration), not a runtime condition.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: init default metrics: " + err.Error())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}
