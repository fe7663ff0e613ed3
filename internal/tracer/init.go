// Package tracer wires OpenTelemetry for the note agent. Spans cover agent
// turns, tool calls and plan execution, and are exported over OTLP HTTP.
package tracer

import (
	"context"

	"ai-notetaking-agent/internal/config"
	"ai-notetaking-agent/internal/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(context.Context) error

func noop(context.Context) error { return nil }

// Init installs the global tracer provider for the agent service. It returns
// a no-op shutdown when tracing is disabled or the exporter cannot be built,
// so the service always starts.
func Init(cfg config.TracingConfig, environment string, log logger.ILogger) ShutdownFunc {
	if !cfg.Enabled {
		log.Info("Tracer", "Tracing disabled", nil)
		return noop
	}

	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		log.Warn("Tracer", "OTLP exporter unavailable, tracing disabled", map[string]interface{}{
			"endpoint": cfg.Endpoint,
			"error":    err.Error(),
		})
		return noop
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(Resource(cfg.ServiceName, environment)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info("Tracer", "Tracing enabled", map[string]interface{}{
		"endpoint": cfg.Endpoint,
		"service":  cfg.ServiceName,
	})
	return tp.Shutdown
}

// Resource identifies agent spans in the collector.
func Resource(serviceName, environment string) *resource.Resource {
	if serviceName == "" {
		serviceName = "ai-notetaking-agent"
	}
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.DeploymentEnvironmentKey.String(environment),
	)
}
