package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/rpgnotes"

type sessionKey struct{}

// WithSession tags ctx with the session number being processed. Spans
// started with [StartSpan] and loggers from [Logger] pick it up.
func WithSession(ctx context.Context, number int) context.Context {
	return context.WithValue(ctx, sessionKey{}, number)
}

// SessionFrom returns the session number stored by [WithSession].
func SessionFrom(ctx context.Context) (int, bool) {
	n, ok := ctx.Value(sessionKey{}).(int)
	return n, ok
}

// StartSpan starts a span on the global tracer provider. When ctx carries a
// session number the span gets a "session" attribute. The caller must end
// the span.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if n, ok := SessionFrom(ctx); ok {
		opts = append(opts, trace.WithAttributes(attribute.Int("session", n)))
	}
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// CorrelationID is the trace ID of the active span in ctx, or "".
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with the session number and the active
// trace and span IDs of ctx attached, as far as they are present.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if n, ok := SessionFrom(ctx); ok {
		l = l.With(slog.Int("session", n))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
