package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the value of the int64 sum data point whose attribute key
// equals value.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	t.Fatalf("metric %q: no data point with %s=%s", name, key, value)
	return 0
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"rpgnotes.assembly.duration", m.AssemblyDuration},
		{"rpgnotes.llm.duration", m.LLMDuration},
		{"rpgnotes.http.request.duration", m.HTTPRequestDuration},
	}
	for _, tc := range histograms {
		tc.h.Record(ctx, 0.2)
		tc.h.Record(ctx, 1.5)
	}

	rm := collect(t, reader)
	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestRecordAssembly(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAssembly(ctx, "created", 0.4)
	m.RecordAssembly(ctx, "already_exists", 0.001)
	m.RecordAssembly(ctx, "already_exists", 0.001)

	rm := collect(t, reader)
	if got := sumFor(t, rm, "rpgnotes.assembly.outcomes", "outcome", "already_exists"); got != 2 {
		t.Errorf("already_exists = %d, want 2", got)
	}
	if got := sumFor(t, rm, "rpgnotes.assembly.outcomes", "outcome", "created"); got != 1 {
		t.Errorf("created = %d, want 1", got)
	}
}

func TestRecordRejected(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRejected(ctx, "no_speech", 3)
	m.RecordRejected(ctx, "duplicate", 0)
	m.RecordRejected(ctx, "no_speech", 2)

	rm := collect(t, reader)
	if got := sumFor(t, rm, "rpgnotes.segments.rejected", "reason", "no_speech"); got != 5 {
		t.Errorf("no_speech = %d, want 5", got)
	}

	met := findMetric(rm, "rpgnotes.segments.rejected")
	for _, dp := range met.Data.(metricdata.Sum[int64]).DataPoints {
		if v, _ := dp.Attributes.Value("reason"); v.AsString() == "duplicate" {
			t.Error("zero-count reason should not produce a data point")
		}
	}
}

func TestProviderCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "gemini", "ok")
	m.RecordProviderRequest(ctx, "gemini", "error")
	m.RecordProviderError(ctx, "gemini")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "rpgnotes.provider.requests", "status", "ok"); got != 1 {
		t.Errorf("requests ok = %d, want 1", got)
	}
	if got := sumFor(t, rm, "rpgnotes.provider.errors", "provider", "gemini"); got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a == nil || a != b {
		t.Fatalf("DefaultMetrics returned %p and %p, want the same non-nil pointer", a, b)
	}
}
