package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xKoRx/echo/sdk/telemetry/metricbundle"
)

// Client es el cliente unificado de telemetría para echo
type Client struct {
	config Config
	logger *zap.Logger
	tracer trace.Tracer
	meter  metric.Meter

	// Providers (para shutdown)
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	// Bundle de métricas del copiador
	copyMetrics *metricbundle.CopyMetrics

	// Instrumentos ad-hoc
	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// New crea una nueva instancia del cliente de telemetría
func New(ctx context.Context, serviceName, environment string, opts ...Option) (*Client, error) {
	cfg := DefaultConfig(serviceName, environment)
	for _, opt := range opts {
		opt(&cfg)
	}

	client := &Client{
		config:     cfg,
		logger:     zap.NewNop(),
		tracer:     tracenoop.NewTracerProvider().Tracer(cfg.ServiceName),
		meter:      metricnoop.NewMeterProvider().Meter(cfg.ServiceName),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}

	// Crear resource común
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
		resource.WithAttributes(cfg.CommonAttributes...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if cfg.EnableLogs {
		if err := client.initLogs(); err != nil {
			return nil, fmt.Errorf("failed to init logs: %w", err)
		}
	}

	// Sin collector no se levantan exporters
	if cfg.EnableTraces && cfg.tracesEndpoint() != "" {
		if err := client.initTraces(ctx, res); err != nil {
			return nil, fmt.Errorf("failed to init traces: %w", err)
		}
	}

	if cfg.EnableMetrics && cfg.metricsEndpoint() != "" {
		if err := client.initMetrics(ctx, res); err != nil {
			return nil, fmt.Errorf("failed to init metrics: %w", err)
		}
	}

	bundle, err := metricbundle.NewCopyMetrics(client.meter)
	if err != nil {
		return nil, fmt.Errorf("failed to init copy metrics: %w", err)
	}
	client.copyMetrics = bundle

	return client, nil
}

// NewNop retorna un cliente sin salida, útil en tests.
func NewNop() *Client {
	meter := metricnoop.NewMeterProvider().Meter("nop")
	bundle, _ := metricbundle.NewCopyMetrics(meter)
	return &Client{
		logger:      zap.NewNop(),
		tracer:      tracenoop.NewTracerProvider().Tracer("nop"),
		meter:       meter,
		copyMetrics: bundle,
		counters:    make(map[string]metric.Int64Counter),
		histograms:  make(map[string]metric.Float64Histogram),
	}
}

func (c *Client) initLogs() error {
	level, err := zapcore.ParseLevel(c.config.LogLevel)
	if err != nil {
		return err
	}

	var cfg zap.Config
	if c.config.LogFormat == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	c.logger = logger.With(
		zap.String("service.name", c.config.ServiceName),
		zap.String("deployment.environment", c.config.Environment),
	)
	return nil
}

func (c *Client) initTraces(ctx context.Context, res *resource.Resource) error {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(c.config.tracesEndpoint()),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return err
	}

	c.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(c.tracerProvider)
	c.tracer = c.tracerProvider.Tracer(c.config.ServiceName)

	return nil
}

func (c *Client) initMetrics(ctx context.Context, res *resource.Resource) error {
	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(c.config.metricsEndpoint()),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return err
	}

	c.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(c.meterProvider)
	c.meter = c.meterProvider.Meter(c.config.ServiceName)

	return nil
}

// Metrics retorna el bundle de métricas del copiador.
func (c *Client) Metrics() *metricbundle.CopyMetrics {
	return c.copyMetrics
}

// Shutdown cierra todos los exporters y libera recursos
func (c *Client) Shutdown(ctx context.Context) error {
	var errs []error

	if c.tracerProvider != nil {
		if err := c.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if c.meterProvider != nil {
		if err := c.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	// Sync sobre stdout/stderr falla en algunos SO; no es un error real
	_ = c.logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	return nil
}

// GetOrCreateCounter obtiene o crea un contador
func (c *Client) GetOrCreateCounter(name, description string) (metric.Int64Counter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, exists := c.counters[name]; exists {
		return counter, nil
	}

	counter, err := c.meter.Int64Counter(name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, err
	}

	c.counters[name] = counter
	return counter, nil
}

// GetOrCreateHistogram obtiene o crea un histograma
func (c *Client) GetOrCreateHistogram(name, description string) (metric.Float64Histogram, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if histogram, exists := c.histograms[name]; exists {
		return histogram, nil
	}

	histogram, err := c.meter.Float64Histogram(name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, err
	}

	c.histograms[name] = histogram
	return histogram, nil
}
