package otel

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	envEndpoint    = "ARCADE_OTEL_ENDPOINT"
	envEnabled     = "ARCADE_OTEL_ENABLED"
	envSampleRatio = "ARCADE_OTEL_SAMPLE_RATIO"
)

// Setup initialises OpenTelemetry tracing for one arcade process.
//
// Tracing is opt-in: when ARCADE_OTEL_ENDPOINT is empty or
// ARCADE_OTEL_ENABLED is "false", Setup returns a no-op shutdown function and
// the global no-op provider stays in place. ARCADE_OTEL_SAMPLE_RATIO keeps a
// fraction of root traces; a lobby command span decides for the whole trace.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if strings.EqualFold(os.Getenv(envEnabled), "false") {
		return noop, nil
	}
	endpoint := os.Getenv(envEndpoint)
	if endpoint == "" {
		return noop, nil
	}
	sampler, err := samplerFromEnv()
	if err != nil {
		return noop, err
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noop, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceNamespace("arcadehub"),
			semconv.ProcessPID(os.Getpid()),
		),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}

// samplerFromEnv reads ARCADE_OTEL_SAMPLE_RATIO. Unset means every trace.
func samplerFromEnv() (sdktrace.Sampler, error) {
	raw := strings.TrimSpace(os.Getenv(envSampleRatio))
	if raw == "" {
		return sdktrace.AlwaysSample(), nil
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("%s must be a number in [0,1], got %q", envSampleRatio, raw)
	}
	switch ratio {
	case 0:
		return sdktrace.NeverSample(), nil
	case 1:
		return sdktrace.AlwaysSample(), nil
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio)), nil
}
