// Package tracing wires OpenTelemetry spans around Redmine requests,
// project and page exports, and MCP tool calls.
package tracing

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "redmine-wiki-exporter"

// Environment variables read by DefaultConfig
const (
	EnvEnabled     = "OTEL_ENABLED"
	EnvEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvEnvironment = "OTEL_ENVIRONMENT"
)

// Config holds tracing configuration
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool

	// OTLPEndpoint selects the OTLP/HTTP exporter. When empty, spans are
	// pretty-printed to Writer.
	OTLPEndpoint string

	// Writer receives printed spans. Never stdout: the MCP server speaks
	// its protocol there. Defaults to stderr.
	Writer io.Writer

	SampleRate float64
}

// DefaultConfig returns the configuration taken from the OTEL_* environment.
// Tracing is off unless OTEL_ENABLED=true or an OTLP endpoint is set.
func DefaultConfig() Config {
	endpoint := os.Getenv(EnvEndpoint)
	environment := os.Getenv(EnvEnvironment)
	if environment == "" {
		environment = "development"
	}
	return Config{
		ServiceName:    TracerName,
		ServiceVersion: "1.0.0",
		Environment:    environment,
		Enabled:        os.Getenv(EnvEnabled) == "true" || endpoint != "",
		OTLPEndpoint:   endpoint,
		Writer:         os.Stderr,
		SampleRate:     1.0,
	}
}

// Setup installs the global tracer provider and returns its shutdown
// function. With tracing disabled the shutdown function is a no-op.
func Setup(ctx context.Context, config Config) (func(context.Context) error, error) {
	if !config.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			attribute.String("environment", config.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := newExporter(ctx, config)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(config.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, config Config) (sdktrace.SpanExporter, error) {
	if config.OTLPEndpoint != "" {
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(config.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
	}

	w := config.Writer
	if w == nil {
		w = os.Stderr
	}
	return stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer returns the exporter's tracer
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartSpan starts a span named name
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// AddToolAttributes tags a span with the MCP tool it serves
func AddToolAttributes(span trace.Span, toolName, category string) {
	span.SetAttributes(
		attribute.String("mcp.tool.name", toolName),
		attribute.String("mcp.tool.category", category),
	)
}

// AddRedmineAttributes tags a span with the Redmine endpoint and, when
// known, the project
func AddRedmineAttributes(span trace.Span, endpoint, project string) {
	span.SetAttributes(attribute.String("redmine.api.endpoint", endpoint))
	if project != "" {
		span.SetAttributes(attribute.String("redmine.project", project))
	}
}

// AddPageAttributes tags a span with the wiki page being exported and the
// directory it is written to
func AddPageAttributes(span trace.Span, project, title, dir string) {
	span.SetAttributes(
		attribute.String("redmine.project", project),
		attribute.String("redmine.wiki.title", title),
		attribute.String("export.dir", dir),
	)
}

// RecordError records err on the span and marks it failed. nil is ignored.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
