package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Info registra un mensaje informativo
func (c *Client) Info(ctx context.Context, msg string, attrs ...attribute.KeyValue) {
	c.log(ctx, zapcore.InfoLevel, msg, nil, attrs)
}

// Error registra un mensaje de error
func (c *Client) Error(ctx context.Context, msg string, err error, attrs ...attribute.KeyValue) {
	c.log(ctx, zapcore.ErrorLevel, msg, err, attrs)
}

// Warn registra un mensaje de advertencia
func (c *Client) Warn(ctx context.Context, msg string, attrs ...attribute.KeyValue) {
	c.log(ctx, zapcore.WarnLevel, msg, nil, attrs)
}

// Debug registra un mensaje de debug
func (c *Client) Debug(ctx context.Context, msg string, attrs ...attribute.KeyValue) {
	c.log(ctx, zapcore.DebugLevel, msg, nil, attrs)
}

func (c *Client) log(ctx context.Context, level zapcore.Level, msg string, err error, attrs []attribute.KeyValue) {
	if c == nil || c.logger == nil {
		return
	}
	ce := c.logger.Check(level, msg)
	if ce == nil {
		return
	}

	fields := c.toZapFields(ctx, attrs)
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	ce.Write(fields...)
}

// toZapFields convierte atributos OTEL (contexto + llamada) a campos zap
func (c *Client) toZapFields(ctx context.Context, attrs []attribute.KeyValue) []zap.Field {
	common := GetCommonAttrs(ctx)
	event := GetEventAttrs(ctx)

	fields := make([]zap.Field, 0, len(common)+len(event)+len(attrs)+2)
	for _, group := range [][]attribute.KeyValue{common, event, attrs} {
		for _, attr := range group {
			fields = append(fields, zap.Any(string(attr.Key), attr.Value.AsInterface()))
		}
	}
	return fields
}
