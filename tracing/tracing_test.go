package tracing

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvEnabled, EnvEndpoint, EnvEnvironment} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestDefaultConfig_DisabledWithoutEnv(t *testing.T) {
	clearEnv(t)

	cfg := DefaultConfig()

	if cfg.Enabled {
		t.Error("tracing should be off without OTEL_ENABLED or an endpoint")
	}
	if cfg.Writer != os.Stderr {
		t.Error("printed spans should go to stderr, stdout belongs to MCP")
	}
	if cfg.ServiceName != TracerName {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, TracerName)
	}
}

func TestDefaultConfig_EnabledByEndpoint(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvEndpoint, "localhost:4318")

	cfg := DefaultConfig()

	if !cfg.Enabled || cfg.OTLPEndpoint != "localhost:4318" {
		t.Errorf("cfg = %+v, want OTLP tracing to localhost:4318", cfg)
	}
}

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown returned error: %v", err)
	}
}

func TestSetup_PrintsSpansToWriter(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Config{
		ServiceName: TracerName,
		Enabled:     true,
		Writer:      &buf,
		SampleRate:  1.0,
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	_, span := StartSpan(context.Background(), "export.project")
	AddRedmineAttributes(span, "wiki_index", "demo")
	RecordError(span, errors.New("wiki index unusable"))
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"export.project", "redmine.project", "wiki index unusable"} {
		if !strings.Contains(out, want) {
			t.Errorf("span output missing %q", want)
		}
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.5, "AlwaysOnSampler"},
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased"},
	}

	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); !strings.HasPrefix(got, tt.want) {
			t.Errorf("sampler(%v) = %q, want %s", tt.rate, got, tt.want)
		}
	}
}

func TestHelpersOnNoopSpan(t *testing.T) {
	_, span := noop.NewTracerProvider().Tracer("test").Start(context.Background(), "page")
	defer span.End()

	AddToolAttributes(span, "redmine_export_project", "export")
	AddRedmineAttributes(span, "projects", "")
	AddPageAttributes(span, "demo", "Setup", "demo/Home")
	RecordError(span, nil)
}
