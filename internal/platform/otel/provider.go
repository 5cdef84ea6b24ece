// Package otel wires OpenTelemetry tracing for JAIMES commands.
package otel

import (
	"context"
	"fmt"
	"strings"

	"github.com/integerman/jaimes/internal/platform/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Settings controls trace export. Stage and capability spans are only
// exported when Endpoint is set.
type Settings struct {
	Endpoint string `env:"JAIMES_OTEL_ENDPOINT"`
	// Enabled set to "false" turns tracing off even with an endpoint.
	Enabled string `env:"JAIMES_OTEL_ENABLED"`
	// SampleRatio samples root traces, one per exchange stage; 1 keeps all.
	SampleRatio float64 `env:"JAIMES_OTEL_SAMPLE_RATIO" envDefault:"1"`
	Version     string  `env:"JAIMES_VERSION"           envDefault:"dev"`
}

// Active reports whether spans should be exported.
func (s Settings) Active() bool {
	return !strings.EqualFold(strings.TrimSpace(s.Enabled), "false") && strings.TrimSpace(s.Endpoint) != ""
}

// Sampler keeps the parent's decision and samples roots by SampleRatio.
func (s Settings) Sampler() sdktrace.Sampler {
	root := sdktrace.AlwaysSample()
	if s.SampleRatio < 1 {
		root = sdktrace.TraceIDRatioBased(s.SampleRatio)
	}
	return sdktrace.ParentBased(root)
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (Settings, error) {
	var settings Settings
	if err := config.ParseEnv(&settings); err != nil {
		return Settings{}, err
	}
	if settings.SampleRatio < 0 || settings.SampleRatio > 1 {
		return Settings{}, fmt.Errorf("JAIMES_OTEL_SAMPLE_RATIO must be between 0 and 1, got %v", settings.SampleRatio)
	}
	return settings, nil
}

// Setup initialises OpenTelemetry tracing for the given service from the
// environment.
//
// Tracing is opt-in: when JAIMES_OTEL_ENDPOINT is empty or JAIMES_OTEL_ENABLED
// is "false", Setup returns a no-op shutdown function and the global provider
// stays the no-op default, so stage spans cost nothing.
//
// The returned shutdown function flushes pending spans and should be deferred
// by the caller.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	settings, err := LoadSettings()
	if err != nil {
		return func(context.Context) error { return nil }, err
	}
	return SetupWith(ctx, serviceName, settings)
}

// SetupWith is Setup with explicit settings.
func SetupWith(ctx context.Context, serviceName string, settings Settings) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if !settings.Active() {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(strings.TrimSpace(settings.Endpoint)),
	)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(settings.Version),
			attribute.String("gm.command", serviceName),
		),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(settings.Sampler()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
