package telemetry

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	ServiceName    = "spice-runner-leaderboard-api"
	ServiceVersion = "1.0.0"
)

var (
	Tracer trace.Tracer
	Meter  metric.Meter

	ScoreSubmissionsTotal     metric.Int64Counter
	ScoreSubmissionErrors     metric.Int64Counter
	CacheHitTotal             metric.Int64Counter
	CacheMissTotal            metric.Int64Counter
	ScoreValidationDuration   metric.Float64Histogram
	DBQueryDuration           metric.Float64Histogram
	RedisOpDuration           metric.Float64Histogram
	HTTPServerRequestDuration metric.Float64Histogram
	HTTPServerRequestsTotal   metric.Int64Counter
)

// The global tracer and meter delegate to whatever providers Init installs
// later, so instruments created here stay valid (and are no-ops under test
// when Init is never called).
func init() {
	Tracer = otel.Tracer(ServiceName)
	Meter = otel.Meter(ServiceName)
	if err := initInstruments(); err != nil {
		log.Fatalf("Failed to create telemetry instruments: %v", err)
	}
}

// Init wires the OTLP trace exporter and the Prometheus metric reader into
// the global providers. The returned function flushes and shuts both down.
func Init(ctx context.Context, otlpEndpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(otlpEndpoint),
		otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()),
		otlptracegrpc.WithDialOption(grpc.WithBlock()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	metricExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(metricExporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	log.Println("OpenTelemetry initialized")

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}
		return mp.Shutdown(ctx)
	}, nil
}

func initInstruments() error {
	var err error

	ScoreSubmissionsTotal, err = Meter.Int64Counter(
		"score.submissions.total",
		metric.WithDescription("Total number of score submissions"),
	)
	if err != nil {
		return err
	}

	ScoreSubmissionErrors, err = Meter.Int64Counter(
		"score.submission.errors.total",
		metric.WithDescription("Total number of score submission errors"),
	)
	if err != nil {
		return err
	}

	CacheHitTotal, err = Meter.Int64Counter(
		"cache.hits.total",
		metric.WithDescription("Total number of cache hits"),
	)
	if err != nil {
		return err
	}

	CacheMissTotal, err = Meter.Int64Counter(
		"cache.misses.total",
		metric.WithDescription("Total number of cache misses"),
	)
	if err != nil {
		return err
	}

	ScoreValidationDuration, err = Meter.Float64Histogram(
		"score.validation.duration.seconds",
		metric.WithDescription("Duration of score validation in seconds"),
	)
	if err != nil {
		return err
	}

	DBQueryDuration, err = Meter.Float64Histogram(
		"db.query.duration.seconds",
		metric.WithDescription("Duration of database queries in seconds"),
	)
	if err != nil {
		return err
	}

	RedisOpDuration, err = Meter.Float64Histogram(
		"redis.operation.duration.seconds",
		metric.WithDescription("Duration of Redis operations in seconds"),
	)
	if err != nil {
		return err
	}

	HTTPServerRequestDuration, err = Meter.Float64Histogram(
		"http.server.request.duration.seconds",
		metric.WithDescription("Duration of HTTP server requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	HTTPServerRequestsTotal, err = Meter.Int64Counter(
		"http.server.requests.total",
		metric.WithDescription("Total number of HTTP server requests"),
	)
	return err
}
