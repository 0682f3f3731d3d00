package tracing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/gametester/runctl/internal/config"
)

const (
	defaultServiceName   = "runctl"
	defaultSamplingRatio = 1.0
	defaultExportTimeout = 10 * time.Second
)

type ShutdownFunc func(ctx context.Context) error

type errorHandler struct {
	logger *slog.Logger
}

func (h *errorHandler) Handle(err error) {
	h.logger.Warn("Trace error occurred", "error", err.Error())
}

// Tracer returns the named tracer of the global provider. Without
// SetupTracing this is a no-op tracer.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// SetupTracing installs the global tracer provider described by the otel
// section. A disabled section leaves the no-op provider in place.
func SetupTracing(ctx context.Context, conf *config.Config, logger *slog.Logger) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }
	if !conf.IsOTelEnabled() {
		return noop, nil
	}
	otelConfig := conf.OTel

	exporter, err := newExporter(ctx, otelConfig, os.Stdout)
	if err != nil {
		return noop, err
	}

	serviceName := otelConfig.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	version := ""
	if conf.Service != nil {
		version = conf.Service.Version
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	))
	if err != nil {
		return noop, fmt.Errorf("failed to create the trace resource: %w", err)
	}

	ratio := defaultSamplingRatio
	if otelConfig.SamplingRatio != nil {
		ratio = *otelConfig.SamplingRatio
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetErrorHandler(&errorHandler{logger: logger})

	logger.Info("Tracing enabled", "exporter_type", otelConfig.ExporterType, "endpoint", otelConfig.ExporterEndpoint, "sampling_ratio", ratio)
	return tracerProvider.Shutdown, nil
}

func newExporter(ctx context.Context, otelConfig *config.OTelConfig, stdout io.Writer) (sdktrace.SpanExporter, error) {
	timeout := otelConfig.ExportTimeout
	if timeout == 0 {
		timeout = defaultExportTimeout
	}
	switch otelConfig.ExporterType {
	case config.ExporterTypeOTLPHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithTimeout(timeout)}
		if otelConfig.ExporterEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(otelConfig.ExporterEndpoint))
		}
		if otelConfig.ExporterInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp-http exporter: %w", err)
		}
		return exporter, nil
	case config.ExporterTypeOTLPGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithTimeout(timeout)}
		if otelConfig.ExporterEndpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpointURL(otelConfig.ExporterEndpoint))
		}
		if otelConfig.ExporterInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp-grpc exporter: %w", err)
		}
		return exporter, nil
	case config.ExporterTypeStdout, "":
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(stdout), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unsupported exporter type %q", otelConfig.ExporterType)
	}
}
