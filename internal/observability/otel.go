package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ServiceName identifies this process in exported spans.
const ServiceName = "vicw"

// InitTracing installs a process-wide TracerProvider so every hot-path turn
// and cold-path job can be wrapped in a span. Exporting is left pluggable:
// callers that want OTLP export register a batcher span processor on the
// returned provider before traffic starts.
func InitTracing(ctx context.Context, serviceVersion string) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("init otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	shutdown := func(ctx context.Context) error {
		return tp.Shutdown(ctx)
	}
	return tp, shutdown, nil
}

// Tracer returns the package-level tracer used by the hot and cold paths.
func Tracer() trace.Tracer {
	return otel.Tracer(ServiceName)
}

// TurnAttributes are the span attributes attached to each orchestrator turn.
func TurnAttributes(sessionID string, tokensBefore int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("vicw.session_id", sessionID),
		attribute.Int("vicw.tokens_before", tokensBefore),
	}
}
