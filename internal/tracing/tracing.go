// Package tracing installs the OpenTelemetry tracer provider.
package tracing

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Setup registers a global tracer provider for serviceName. Processors receive
// finished spans; with none, spans are sampled and dropped, which still gives
// log lines trace ids. The returned function flushes and shuts the provider down.
func Setup(serviceName string, processors ...sdktrace.SpanProcessor) func(context.Context) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	}
	for _, p := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		otel.SetTracerProvider(prev)
		return err
	}
}

// LogFields returns trace_id and span_id for the span in ctx, if any
func LogFields(ctx context.Context) log.Fields {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return log.Fields{}
	}
	return log.Fields{
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	}
}
