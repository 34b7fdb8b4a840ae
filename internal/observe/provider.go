package observe

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// serviceName identifies spellbook in every exported resource.
const serviceName = "spellbook"

// Telemetry owns the SDK providers installed by [Setup].
type Telemetry struct {
	meters *sdkmetric.MeterProvider
	traces *sdktrace.TracerProvider
}

type setupConfig struct {
	registerer prometheus.Registerer
	spans      sdktrace.SpanExporter
}

// SetupOption configures [Setup].
type SetupOption func(*setupConfig)

// WithRegisterer registers the metric collectors with reg instead of
// [prometheus.DefaultRegisterer], which the admin /metrics handler serves
// by default.
func WithRegisterer(reg prometheus.Registerer) SetupOption {
	return func(c *setupConfig) { c.registerer = reg }
}

// WithSpanExporter batches finished session and admin spans to exp. Without
// it spans carry trace IDs into the logs but are not exported.
func WithSpanExporter(exp sdktrace.SpanExporter) SetupOption {
	return func(c *setupConfig) { c.spans = exp }
}

// Setup installs global meter and tracer providers tagged with the service
// name and version. Metrics are exposed through a Prometheus collector.
// Call [Telemetry.Shutdown] before exit to flush spans.
func Setup(version string, opts ...SetupOption) (*Telemetry, error) {
	var cfg setupConfig
	for _, o := range opts {
		o(&cfg)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	var promOpts []promexporter.Option
	if cfg.registerer != nil {
		promOpts = append(promOpts, promexporter.WithRegisterer(cfg.registerer))
	}
	collector, err := promexporter.New(promOpts...)
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}

	t := &Telemetry{
		meters: sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(collector)),
	}
	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.spans != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.spans))
	}
	t.traces = sdktrace.NewTracerProvider(tpOpts...)

	otel.SetMeterProvider(t.meters)
	otel.SetTracerProvider(t.traces)
	return t, nil
}

// Shutdown flushes pending spans and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.traces.Shutdown(ctx), t.meters.Shutdown(ctx))
}
