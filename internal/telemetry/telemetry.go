package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/config"
	"github.com/CodeMonkeyCybersecurity/osintrecon/pkg/types"
)

const (
	lookupCounterName  = "osintrecon.lookups.total"
	lookupDurationName = "osintrecon.lookup.duration"
)

// Telemetry records one data point per lookup of a run.
type Telemetry interface {
	RecordLookup(ctx context.Context, kind types.LookupKind, status types.LookupStatus, duration time.Duration)
	Close() error
}

type telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	lookupCounter  metric.Int64Counter
	lookupDuration metric.Float64Histogram
}

func New(ctx context.Context, cfg config.TelemetryConfig) (Telemetry, error) {
	if !cfg.Enabled {
		return &noopTelemetry{}, nil
	}

	var (
		spanExporter   sdktrace.SpanExporter
		metricExporter sdkmetric.Exporter
	)

	switch cfg.ExporterType {
	case "otlp":
		client := otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		exp, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		spanExporter = exp

		metricExp, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		metricExporter = metricExp
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}

	return newTelemetry(ctx, cfg,
		sdktrace.WithBatcher(spanExporter),
		sdkmetric.NewPeriodicReader(metricExporter),
	)
}

// newTelemetry installs the global providers and creates the lookup
// instruments on top of reader.
func newTelemetry(ctx context.Context, cfg config.TelemetryConfig, spans sdktrace.TracerProviderOption, reader sdkmetric.Reader) (*telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
		sdktrace.WithResource(res),
		spans,
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	meter := mp.Meter(cfg.ServiceName)

	lookupCounter, err := meter.Int64Counter(lookupCounterName,
		metric.WithDescription("Total number of lookups by kind and outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	lookupDuration, err := meter.Float64Histogram(lookupDurationName,
		metric.WithDescription("Lookup duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &telemetry{
		tracerProvider: tp,
		meterProvider:  mp,
		lookupCounter:  lookupCounter,
		lookupDuration: lookupDuration,
	}, nil
}

func (t *telemetry) RecordLookup(ctx context.Context, kind types.LookupKind, status types.LookupStatus, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("lookup.kind", string(kind)),
		attribute.String("lookup.status", string(status)),
	)

	t.lookupCounter.Add(ctx, 1, attrs)
	t.lookupDuration.Record(ctx, duration.Seconds(), attrs)
}

// Close flushes pending spans and metrics.
func (t *telemetry) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(
		t.meterProvider.Shutdown(ctx),
		t.tracerProvider.Shutdown(ctx),
	)
}

type noopTelemetry struct{}

func (n *noopTelemetry) RecordLookup(context.Context, types.LookupKind, types.LookupStatus, time.Duration) {
}
func (n *noopTelemetry) Close() error { return nil }

// Noop returns a Telemetry that records nothing.
func Noop() Telemetry {
	return &noopTelemetry{}
}
