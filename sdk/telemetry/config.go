package telemetry

import "go.opentelemetry.io/otel/attribute"

// Config contiene la configuración para el cliente de telemetría
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// OTLP Collector endpoints
	// Traces y métricas pueden vivir en endpoints/puertos distintos
	OTLPEndpoint        string // Compat: si se setea, aplica a ambos si los específicos están vacíos
	OTLPTracesEndpoint  string
	OTLPMetricsEndpoint string

	// Logs
	LogLevel  string // debug | info | warn | error
	LogFormat string // json | console

	// Atributos comunes a todos los logs, métricas y trazas
	CommonAttributes []attribute.KeyValue

	// Habilitar/deshabilitar componentes
	EnableLogs    bool
	EnableMetrics bool
	EnableTraces  bool
}

// DefaultConfig retorna una configuración con valores por defecto
func DefaultConfig(serviceName, environment string) Config {
	return Config{
		ServiceName:      serviceName,
		ServiceVersion:   "0.0.1",
		Environment:      environment,
		LogLevel:         "info",
		LogFormat:        "json",
		EnableLogs:       true,
		EnableMetrics:    true,
		EnableTraces:     true,
		CommonAttributes: []attribute.KeyValue{},
	}
}

func (c Config) tracesEndpoint() string {
	if c.OTLPTracesEndpoint != "" {
		return c.OTLPTracesEndpoint
	}
	return c.OTLPEndpoint
}

func (c Config) metricsEndpoint() string {
	if c.OTLPMetricsEndpoint != "" {
		return c.OTLPMetricsEndpoint
	}
	return c.OTLPEndpoint
}

// Option es una función que modifica la configuración
type Option func(*Config)

// WithVersion establece la versión del servicio
func WithVersion(version string) Option {
	return func(c *Config) {
		c.ServiceVersion = version
	}
}

// WithOTLPEndpoint establece el endpoint del collector
func WithOTLPEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.OTLPEndpoint = endpoint
	}
}

// WithTracesEndpoint establece endpoint específico para trazas
func WithTracesEndpoint(endpoint string) Option {
	return func(c *Config) { c.OTLPTracesEndpoint = endpoint }
}

// WithMetricsEndpoint establece endpoint específico para métricas
func WithMetricsEndpoint(endpoint string) Option {
	return func(c *Config) { c.OTLPMetricsEndpoint = endpoint }
}

// WithLogLevel establece el nivel mínimo de log
func WithLogLevel(level string) Option {
	return func(c *Config) {
		if level != "" {
			c.LogLevel = level
		}
	}
}

// WithLogFormat establece el formato de log (json | console)
func WithLogFormat(format string) Option {
	return func(c *Config) {
		if format != "" {
			c.LogFormat = format
		}
	}
}

// WithCommonAttributes añade atributos comunes
func WithCommonAttributes(attrs ...attribute.KeyValue) Option {
	return func(c *Config) {
		c.CommonAttributes = append(c.CommonAttributes, attrs...)
	}
}

// WithLogsDisabled deshabilita logs
func WithLogsDisabled() Option {
	return func(c *Config) {
		c.EnableLogs = false
	}
}

// WithMetricsDisabled deshabilita métricas
func WithMetricsDisabled() Option {
	return func(c *Config) {
		c.EnableMetrics = false
	}
}

// WithTracesDisabled deshabilita trazas
func WithTracesDisabled() Option {
	return func(c *Config) {
		c.EnableTraces = false
	}
}

// Settings bloque de telemetría de los archivos de configuración (mapstructure).
type Settings struct {
	ServiceName     string `mapstructure:"service_name"`
	ServiceVersion  string `mapstructure:"service_version"`
	OTLPEndpoint    string `mapstructure:"otlp_endpoint"`
	MetricsEndpoint string `mapstructure:"metrics_endpoint"`
	LogLevel        string `mapstructure:"log_level"`
	LogFormat       string `mapstructure:"log_format"`
	DisableMetrics  bool   `mapstructure:"disable_metrics"`
	DisableTraces   bool   `mapstructure:"disable_traces"`
}

// Options traduce Settings a opciones de New.
func (s Settings) Options() []Option {
	opts := []Option{
		WithLogLevel(s.LogLevel),
		WithLogFormat(s.LogFormat),
	}
	if s.ServiceVersion != "" {
		opts = append(opts, WithVersion(s.ServiceVersion))
	}
	if s.OTLPEndpoint != "" {
		opts = append(opts, WithOTLPEndpoint(s.OTLPEndpoint))
	}
	if s.MetricsEndpoint != "" {
		opts = append(opts, WithMetricsEndpoint(s.MetricsEndpoint))
	}
	if s.DisableMetrics {
		opts = append(opts, WithMetricsDisabled())
	}
	if s.DisableTraces {
		opts = append(opts, WithTracesDisabled())
	}
	return opts
}
