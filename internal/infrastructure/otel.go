package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ServiceName identifies this service in telemetry resources
	ServiceName = "fiscalcli"
	// TracerName is the instrumentation scope for pipeline spans
	TracerName = "fiscalcli.pipeline"
)

// OTelConfig controls telemetry initialization
type OTelConfig struct {
	ServiceVersion string
	// TraceToStdout enables the stdout span exporter, useful when
	// debugging pipeline step ordering locally.
	TraceToStdout bool
	// Registry receives the OTel metric instruments; it is the same
	// registry served on /metrics.
	Registry *prometheus.Registry
}

// OTelProviders bundles the initialized telemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Registry       *prometheus.Registry
}

// InitializeOTel sets up tracing and metrics with a Prometheus exporter
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = &OTelConfig{}
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create telemetry resource: %w", err)
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceToStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter))
	}
	tracerProvider := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tracerProvider)

	promExporter, err := otelprom.New(otelprom.WithRegisterer(cfg.Registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)
	otel.SetMeterProvider(meterProvider)

	logger.Info("telemetry initialized",
		slog.String("service", ServiceName),
		slog.Bool("trace_to_stdout", cfg.TraceToStdout),
	)

	return &OTelProviders{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		Tracer:         tracerProvider.Tracer(TracerName),
		Meter:          meterProvider.Meter(TracerName),
		Registry:       cfg.Registry,
	}, nil
}

// Shutdown flushes and stops the telemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var firstErr error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PipelineMetrics holds the instruments recorded by the pipeline runner
type PipelineMetrics struct {
	RunsTotal        metric.Int64Counter
	RunDuration      metric.Float64Histogram
	StepDuration     metric.Float64Histogram
	EntitiesFitted   metric.Int64Counter
	FitFailures      metric.Int64Counter
	AnomaliesFlagged metric.Int64Counter
	ActiveRuns       metric.Int64UpDownCounter
}

// CreatePipelineMetrics registers the pipeline instruments on the meter
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	runsTotal, err := meter.Int64Counter("pipeline_runs_total",
		metric.WithDescription("Total pipeline runs started"))
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram("pipeline_run_duration_seconds",
		metric.WithDescription("End-to-end pipeline run duration"))
	if err != nil {
		return nil, err
	}

	stepDuration, err := meter.Float64Histogram("pipeline_step_duration_seconds",
		metric.WithDescription("Per-step pipeline duration"))
	if err != nil {
		return nil, err
	}

	entitiesFitted, err := meter.Int64Counter("pipeline_entities_fitted_total",
		metric.WithDescription("Entities successfully fitted per model kind"))
	if err != nil {
		return nil, err
	}

	fitFailures, err := meter.Int64Counter("pipeline_fit_failures_total",
		metric.WithDescription("Entities skipped or failed per model kind"))
	if err != nil {
		return nil, err
	}

	anomaliesFlagged, err := meter.Int64Counter("pipeline_anomalies_flagged_total",
		metric.WithDescription("Anomaly flags emitted"))
	if err != nil {
		return nil, err
	}

	activeRuns, err := meter.Int64UpDownCounter("pipeline_active_runs",
		metric.WithDescription("Pipeline runs currently executing"))
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		RunsTotal:        runsTotal,
		RunDuration:      runDuration,
		StepDuration:     stepDuration,
		EntitiesFitted:   entitiesFitted,
		FitFailures:      fitFailures,
		AnomaliesFlagged: anomaliesFlagged,
		ActiveRuns:       activeRuns,
	}, nil
}
