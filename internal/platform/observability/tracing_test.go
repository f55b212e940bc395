package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetupTracing_Disabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TracingConfig{Exporter: ExporterNone}, nil)
	if err != nil {
		t.Fatalf("disabled tracing must not fail: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
}

func TestSetupTracing_UnknownExporter(t *testing.T) {
	if _, err := SetupTracing(context.Background(), TracingConfig{Exporter: "zipkin"}, nil); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestSetupTracing_StdoutExportsSpans(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	var out bytes.Buffer
	shutdown, err := SetupTracing(context.Background(), TracingConfig{
		ServiceName: "shelter-test",
		Environment: "test",
		Exporter:    "STDOUT",
		Writer:      &out,
	}, nil)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "lifecycle.accept")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(out.String(), "lifecycle.accept") {
		t.Fatalf("span was not exported: %s", out.String())
	}
}
