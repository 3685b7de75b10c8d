package server

import (
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Tracing exporters.
const (
	TracingNone   = "none"
	TracingStdout = "stdout"
)

const serviceName = "linechat"

// NewTracerProvider builds the tracer provider selected by cfg. It returns
// nil when tracing is disabled, leaving the global no-op provider in place.
// The caller owns the provider and must Shutdown it to flush buffered spans.
func NewTracerProvider(cfg TracingConfig, w io.Writer) (*sdktrace.TracerProvider, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "", TracingNone:
		return nil, nil
	case TracingStdout:
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		return sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(resource.NewSchemaless(
				attribute.String("service.name", serviceName),
			)),
		), nil
	default:
		return nil, fmt.Errorf("invalid tracing exporter %q", cfg.Exporter)
	}
}
