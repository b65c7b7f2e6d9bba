package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

// ProviderConfig configures the global tracer provider.
type ProviderConfig struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool
	OTLP           exporters.OTLPConfig
}

// Setup builds the tracer provider, registers it globally and wires the
// package tracer. Returns a shutdown func to flush spans on exit.
func Setup(ctx context.Context, cfg ProviderConfig) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("failed to create tracing resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	if cfg.Enabled {
		exporter, err = exporters.NewOTLPExporter(ctx, cfg.OTLP)
		if err != nil {
			return noop, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	} else {
		exporter = &exporters.ConsoleExporter{}
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	SetTracer(provider.Tracer(cfg.ServiceName))

	return provider.Shutdown, nil
}
