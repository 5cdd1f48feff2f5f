package observe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TelemetryConfig configures [Init].
type TelemetryConfig struct {
	// ServiceName is reported as service.name. Default: "rpgnotes".
	ServiceName string

	// ServiceVersion is reported as service.version.
	ServiceVersion string

	// TraceExporter receives finished spans. When nil, spans are recorded
	// (so log lines carry trace IDs) but not exported.
	TraceExporter sdktrace.SpanExporter

	// Registerer receives the Prometheus collector. Default:
	// [prometheus.DefaultRegisterer]. Tests pass a fresh registry.
	Registerer prometheus.Registerer

	// Gatherer backs the /metrics handler. Default: [prometheus.DefaultGatherer].
	Gatherer prometheus.Gatherer
}

// Telemetry owns the process-wide OTel providers and, once [Telemetry.Serve]
// is called, the HTTP listener exposing them.
type Telemetry struct {
	gatherer prometheus.Gatherer
	closers  []func(context.Context) error
	srv      *http.Server
}

// Init builds the meter and tracer providers and installs them as the OTel
// globals. Metrics are exported through a Prometheus collector.
func Init(ctx context.Context, cfg TelemetryConfig) (*Telemetry, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "rpgnotes"
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	exp, err := promexporter.New(promexporter.WithRegisterer(cfg.Registerer))
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(exp))
	otel.SetMeterProvider(mp)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)

	return &Telemetry{gatherer: cfg.Gatherer, closers: []func(context.Context) error{mp.Shutdown, tp.Shutdown}}, nil
}

// newResource adds the service attributes to the SDK's default resource.
// The service attributes carry no schema URL, so the merge never conflicts
// with whatever schema the SDK version stamps on its defaults.
func newResource(cfg TelemetryConfig) (*resource.Resource, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}
	return res, nil
}

// Handler returns the Prometheus scrape handler.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.gatherer, promhttp.HandlerOpts{})
}

// Serve listens on addr and serves GET /metrics plus whatever mount adds
// (typically the health routes), all wrapped in [Middleware]. It returns
// the bound address once the listener is up; serving continues in the
// background until [Telemetry.Shutdown].
func (t *Telemetry) Serve(addr string, m *Metrics, mount ...func(*http.ServeMux)) (net.Addr, error) {
	if t.srv != nil {
		return nil, errors.New("observe: telemetry listener already running")
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", t.Handler())
	for _, fn := range mount {
		fn(mux)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("observe: listen %s: %w", addr, err)
	}
	t.srv = &http.Server{
		Handler:           Middleware(m)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := t.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger(context.Background()).Error("telemetry listener stopped", "err", err)
		}
	}()
	return ln.Addr(), nil
}

// Shutdown stops the listener, if any, then flushes and closes the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.srv != nil {
		errs = append(errs, t.srv.Shutdown(ctx))
	}
	for _, fn := range t.closers {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}
