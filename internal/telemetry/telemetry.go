// Package telemetry wires structured logging and OpenTelemetry metrics for
// the mediaparser binary, following the provider-bundle pattern of a
// service's observability init: a single Init call returns everything the
// rest of the program needs, and no-ops cleanly when no collector is
// configured.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const meterName = "mediaparser"

// Config holds observability configuration, read from Settings
// (internal/config) rather than parsed from flags directly here.
type Config struct {
	ServiceVersion string
	Environment    string

	// OTLPEndpoint is the OTLP gRPC collector address. Empty disables
	// export; the Meter becomes a no-op.
	OTLPEndpoint string
	OTLPInsecure bool

	LogLevel slog.Level
	LogJSON  bool
}

// Providers holds the initialized observability providers used throughout
// the import/export pipeline.
type Providers struct {
	Meter    metric.Meter
	Logger   *slog.Logger
	Shutdown func(ctx context.Context) error
}

func noopShutdown(context.Context) error { return nil }

// Init builds the Providers bundle. When cfg.OTLPEndpoint is empty, Meter
// is a no-op meter with zero export overhead — the common case for a
// local CLI run.
func Init(cfg Config) (Providers, error) {
	ctx := context.Background()

	res, err := buildResource(cfg)
	if err != nil {
		return Providers{}, err
	}

	mp, mpShutdown, err := buildMeterProvider(ctx, cfg, res)
	if err != nil {
		return Providers{}, fmt.Errorf("telemetry: build meter provider: %w", err)
	}
	otel.SetMeterProvider(mp)

	logger := buildLogger(cfg)

	return Providers{
		Meter:  mp.Meter(meterName),
		Logger: logger,
		Shutdown: func(shutdownCtx context.Context) error {
			return mpShutdown(shutdownCtx)
		},
	}, nil
}

// Noop returns a Providers bundle that discards everything, for tests and
// code paths that don't care about observability.
func Noop() Providers {
	return Providers{
		Meter:    noopmetric.NewMeterProvider().Meter(meterName),
		Logger:   slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1})),
		Shutdown: noopShutdown,
	}
}

func buildResource(cfg Config) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceName("mediaparser")),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(cfg.ServiceVersion)))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironment(cfg.Environment)))
	}
	res, err := resource.New(context.Background(), attrs...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build otel resource: %w", err)
	}
	return res, nil
}

func buildLogger(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

type shutdownFunc func(ctx context.Context) error

func buildMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (metric.MeterProvider, shutdownFunc, error) {
	if cfg.OTLPEndpoint == "" {
		return noopmetric.NewMeterProvider(), func(context.Context) error { return nil }, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	return mp, mp.Shutdown, nil
}
