package config

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ObservabilityConfig holds the OpenTelemetry export settings.
// Telemetry is opt-in: without an endpoint, SetupObservability registers nothing.
type ObservabilityConfig struct {
	ServiceName    string        `env:"COMMANDBUS_OTEL_SERVICE_NAME" envDefault:"commandbus"`
	ServiceVersion string        `env:"COMMANDBUS_OTEL_SERVICE_VERSION" envDefault:"dev"`
	Endpoint       string        `env:"COMMANDBUS_OTEL_ENDPOINT"`
	Insecure       bool          `env:"COMMANDBUS_OTEL_INSECURE" envDefault:"true"`
	MetricInterval time.Duration `env:"COMMANDBUS_OTEL_METRIC_INTERVAL" envDefault:"5s"`
	SampleRatio    float64       `env:"COMMANDBUS_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// LoadObservabilityConfig parses ObservabilityConfig from the environment.
func LoadObservabilityConfig() (ObservabilityConfig, error) {
	var cfg ObservabilityConfig
	if err := ParseEnv(&cfg); err != nil {
		return ObservabilityConfig{}, err
	}

	return cfg, nil
}

// Enabled reports whether an OTLP endpoint is configured.
func (c ObservabilityConfig) Enabled() bool {
	return c.Endpoint != ""
}

// ObservabilityProviders holds the registered OpenTelemetry providers.
type ObservabilityProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// SetupObservability creates OTLP/HTTP exporting tracer and meter providers and registers them globally.
// It returns nil providers when telemetry is disabled.
func (c ObservabilityConfig) SetupObservability(ctx context.Context) (*ObservabilityProviders, error) {
	if !c.Enabled() {
		return nil, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(c.ServiceName),
			semconv.ServiceVersionKey.String(c.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceOptions := []otlptracehttp.Option{otlptracehttp.WithEndpoint(c.Endpoint)}
	metricOptions := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(c.Endpoint)}

	if c.Insecure {
		traceOptions = append(traceOptions, otlptracehttp.WithInsecure())
		metricOptions = append(metricOptions, otlpmetrichttp.WithInsecure())
	}

	traceExporter, err := otlptracehttp.New(ctx, traceOptions...)
	if err != nil {
		return nil, err
	}

	metricExporter, err := otlpmetrichttp.New(ctx, metricOptions...)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))),
		sdktrace.WithResource(res),
	)

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(c.MetricInterval))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &ObservabilityProviders{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
	}, nil
}

// Shutdown flushes and stops both providers. It is a no-op on nil providers.
func (p *ObservabilityProviders) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}

	return errors.Join(p.TracerProvider.Shutdown(ctx), p.MeterProvider.Shutdown(ctx))
}
