package observability

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	SamplingRate   float64
	ExporterType   string // "stdout" or "none"
	// Writer receives exported spans for the stdout exporter, os.Stderr when nil
	Writer io.Writer
}

// DefaultTracingConfig samples every run and exports to stderr
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:    "formatflow",
		ServiceVersion: "dev",
		SamplingRate:   1.0,
		ExporterType:   "stdout",
	}
}

// Provider owns an installed tracer provider
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Shutdown flushes pending spans and stops the provider
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer: %w", err)
	}
	return nil
}

// InitTracing builds a tracer provider and installs it globally. Extra
// options, such as a span processor in tests, are appended.
func InitTracing(config TracingConfig, opts ...sdktrace.TracerProviderOption) (*Provider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	if config.SamplingRate <= 0 {
		sampler = sdktrace.NeverSample()
	} else if config.SamplingRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(config.SamplingRate)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	}

	switch config.ExporterType {
	case "none", "":
	case "stdout":
		w := config.Writer
		if w == nil {
			w = os.Stderr
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		// Runs are short, so spans are exported synchronously
		tpOpts = append(tpOpts, sdktrace.WithSyncer(exporter))
	default:
		return nil, fmt.Errorf("unsupported trace exporter %q", config.ExporterType)
	}

	tp := sdktrace.NewTracerProvider(append(tpOpts, opts...)...)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp}, nil
}
