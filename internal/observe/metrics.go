// Package observe holds the observability plumbing of rpgnotes: pipeline
// metrics, spans, session-aware structured logging and the optional
// telemetry listener.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported
// to Prometheus by [Telemetry], so a long-running batch can be scraped via
// /metrics. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all rpgnotes metrics.
const meterName = "github.com/MrWong99/rpgnotes"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// AssemblyDuration tracks the wall time of one transcript assembly.
	AssemblyDuration metric.Float64Histogram

	// LLMDuration tracks LLM completion latency during notes generation.
	LLMDuration metric.Float64Histogram

	// --- Counters ---

	// AssemblyOutcomes counts assembly runs. Use with attribute:
	//   attribute.String("outcome", ...)
	AssemblyOutcomes metric.Int64Counter

	// SegmentsAccepted counts segments that made it into a transcript.
	SegmentsAccepted metric.Int64Counter

	// SegmentsRejected counts filtered segments. Use with attribute:
	//   attribute.String("reason", ...)
	SegmentsRejected metric.Int64Counter

	// TracksSkipped counts track files that could not be decoded.
	TracksSkipped metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attribute:
	//   attribute.String("provider", ...)
	ProviderErrors metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// assemblyBuckets covers anything from a handful of tracks on a local disk
// to a multi-hour session with a dozen speakers.
var assemblyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// llmBuckets covers long-context completions, which routinely take tens of
// seconds.
var llmBuckets = []float64{
	0.5, 1, 2.5, 5, 10, 20, 40, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AssemblyDuration, err = m.Float64Histogram("rpgnotes.assembly.duration",
		metric.WithDescription("Wall time of one transcript assembly."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(assemblyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("rpgnotes.llm.duration",
		metric.WithDescription("Latency of LLM completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(llmBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.AssemblyOutcomes, err = m.Int64Counter("rpgnotes.assembly.outcomes",
		metric.WithDescription("Transcript assembly runs by outcome."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsAccepted, err = m.Int64Counter("rpgnotes.segments.accepted",
		metric.WithDescription("Segments written to a transcript."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsRejected, err = m.Int64Counter("rpgnotes.segments.rejected",
		metric.WithDescription("Segments dropped by the filter, by reason."),
	); err != nil {
		return nil, err
	}
	if met.TracksSkipped, err = m.Int64Counter("rpgnotes.tracks.skipped",
		metric.WithDescription("Track files skipped because they could not be read."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("rpgnotes.provider.requests",
		metric.WithDescription("Total provider API requests by provider and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("rpgnotes.provider.errors",
		metric.WithDescription("Total provider errors by provider."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("rpgnotes.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordAssembly records the outcome and duration of one assembly run.
func (m *Metrics) RecordAssembly(ctx context.Context, outcome string, seconds float64) {
	m.AssemblyOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.AssemblyDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRejected increments the rejected-segment counter for reason.
func (m *Metrics) RecordRejected(ctx context.Context, reason string, n int64) {
	if n == 0 {
		return
	}
	m.SegmentsRejected.Add(ctx, n, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordProviderRequest records a provider request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}
