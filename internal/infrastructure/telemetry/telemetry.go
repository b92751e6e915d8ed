// Package telemetry exports traces, metrics, logs and profiles over OTLP and
// Pyroscope.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lotes/backend/internal/infrastructure/config"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceVersion is reported on every exported resource
var ServiceVersion = "dev"

const shutdownTimeout = 10 * time.Second

// Collector addresses the OTLP gRPC endpoint shared by every exporter
type Collector struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
}

func (c Collector) resource() (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(c.ServiceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// shutdown bounds a provider's Shutdown by shutdownTimeout
func shutdown(ctx context.Context, provider string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return fmt.Errorf("failed to shutdown %s provider: %w", provider, err)
	}
	return nil
}

// Telemetry bundles every provider started for the process
type Telemetry struct {
	Tracer   *TracerProvider
	Meter    *MeterProvider
	Logs     *LoggerProvider
	Profiler *Profiler
}

// Setup starts tracing, metrics, log export and profiling as configured.
// Providers started before a failure are shut down before returning.
func Setup(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger) (*Telemetry, error) {
	t := &Telemetry{}
	fail := func(err error) (*Telemetry, error) {
		_ = t.Shutdown(ctx)
		return nil, err
	}

	collector := Collector{
		Endpoint:    cfg.CollectorEndpoint,
		Insecure:    cfg.Insecure,
		ServiceName: cfg.ServiceName,
	}

	var err error
	t.Tracer, err = NewTracerProvider(ctx, TracingConfig{
		Collector:     collector,
		Enabled:       cfg.Enabled,
		SamplingRatio: cfg.SamplingRatio,
	}, logger)
	if err != nil {
		return fail(err)
	}

	t.Meter, err = NewMeterProvider(ctx, MetricsConfig{
		Collector: collector,
		Enabled:   cfg.Enabled && cfg.MetricsEnabled,
		Interval:  cfg.MetricsInterval,
	}, logger)
	if err != nil {
		return fail(err)
	}

	t.Logs, err = NewLoggerProvider(ctx, LogsConfig{
		Collector: collector,
		Enabled:   cfg.Enabled && cfg.LogsEnabled,
	}, logger)
	if err != nil {
		return fail(err)
	}

	t.Profiler, err = NewProfiler(ProfilerConfig{
		Enabled:         cfg.ProfilingEnabled,
		ServerAddress:   cfg.PyroscopeAddress,
		ApplicationName: cfg.ServiceName,
	}, logger)
	if err != nil {
		return fail(err)
	}

	if cfg.SpanProfiles && t.Profiler.IsEnabled() {
		if err := t.Tracer.EnableSpanProfiles(); err != nil {
			return fail(err)
		}
	}
	return t, nil
}

// LogCore returns the collector-bound zap core, or a no-op core
func (t *Telemetry) LogCore(level zapcore.Level) zapcore.Core {
	if t == nil {
		return zapcore.NewNopCore()
	}
	return t.Logs.Core(level)
}

// Shutdown stops every started provider and joins their errors
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.Profiler != nil {
		errs = append(errs, t.Profiler.Stop())
	}
	if t.Logs != nil {
		errs = append(errs, t.Logs.Shutdown(ctx))
	}
	if t.Meter != nil {
		errs = append(errs, t.Meter.Shutdown(ctx))
	}
	if t.Tracer != nil {
		errs = append(errs, t.Tracer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
