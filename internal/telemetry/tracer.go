// Package telemetry sets up OpenTelemetry tracing.
package telemetry

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/tjfontaine/workflow-lens/internal/pkg/config"
)

// Tracing is an initialised tracer provider and its shutdown hook.
type Tracing struct {
	Provider trace.TracerProvider
	Shutdown func(context.Context) error
}

// InitTracer installs the global tracer provider. When tracing is disabled
// a no-op provider is returned and nothing is exported. Spans are written
// to w by the stdout exporter.
func InitTracer(cfg config.TelemetryConfig, w io.Writer, logger *slog.Logger) (*Tracing, error) {
	if !cfg.Enabled {
		return &Tracing{
			Provider: noop.NewTracerProvider(),
			Shutdown: func(context.Context) error { return nil },
		}, nil
	}

	opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if cfg.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	logger.Info("OpenTelemetry initialized", slog.String("service", cfg.ServiceName))

	return &Tracing{Provider: tp, Shutdown: tp.Shutdown}, nil
}
