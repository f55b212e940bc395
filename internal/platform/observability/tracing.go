// Package observability настраивает OpenTelemetry-трассировку процесса.
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Поддерживаемые экспортёры.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// TracingConfig описывает экспорт спанов.
type TracingConfig struct {
	ServiceName string
	Environment string
	Exporter    string
	// Endpoint — host:port OTLP/HTTP коллектора; пустой берётся из OTEL_EXPORTER_OTLP_ENDPOINT.
	Endpoint string
	Insecure bool
	// SampleRatio — доля трассировок, 0 означает 1.
	SampleRatio float64
	// Writer — вывод для stdout-экспортёра, по умолчанию os.Stdout.
	Writer io.Writer
}

// Shutdown сбрасывает накопленные спаны и останавливает провайдер.
type Shutdown func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// SetupTracing устанавливает глобальный TracerProvider. Для ExporterNone остаётся no-op провайдер.
func SetupTracing(ctx context.Context, cfg TracingConfig, logger *log.Entry) (Shutdown, error) {
	if logger == nil {
		logger = log.WithField("component", "observability")
	}

	exporterName := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	if exporterName == "" || exporterName == ExporterNone {
		logger.Debug("tracing disabled")
		return noopShutdown, nil
	}

	exporter, err := newExporter(ctx, exporterName, cfg)
	if err != nil {
		return noopShutdown, err
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return noopShutdown, fmt.Errorf("build otel resource: %w", err)
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.WithFields(log.Fields{
		"exporter":     exporterName,
		"sample_ratio": ratio,
	}).Info("tracing initialized")

	return provider.Shutdown, nil
}

func newExporter(ctx context.Context, name string, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch name {
	case ExporterStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(w))
	case ExporterOTLP:
		var opts []otlptracehttp.Option
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", name)
	}
}
