// Package tracing wires a minimal OpenTelemetry TracerProvider so every
// subsystem can tag its log lines and status-bus events with a correlating
// trace/span id, without requiring an OTLP collector to be present: the
// provider is configured with no span processor, so spans are assigned real
// W3C trace/span ids and then discarded rather than exported.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Tracer starts spans for a named subsystem (e.g. "adapter", "proxy").
type Tracer struct {
	t oteltrace.Tracer
}

var provider *sdktrace.TracerProvider

func init() {
	res, _ := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName("tachtalkd")),
	)
	provider = sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
}

// NewTracer returns a Tracer scoped to the given subsystem name.
func NewTracer(name string) Tracer {
	return Tracer{t: otel.Tracer(name)}
}

// Start begins a span named spanName, returning the derived context and a
// function to end it.
func (tr Tracer) Start(ctx context.Context, spanName string) (context.Context, func()) {
	ctx, span := tr.t.Start(ctx, spanName)
	return ctx, span.End
}

// ExtractIDs returns the trace/span id carried by ctx's active span, or
// empty strings if ctx carries none.
func ExtractIDs(ctx context.Context) (traceID, spanID string) {
	sc := oteltrace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}

// Shutdown flushes and releases the underlying TracerProvider.
func Shutdown(ctx context.Context) error {
	return provider.Shutdown(ctx)
}
