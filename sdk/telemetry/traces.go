package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan inicia un nuevo span con los atributos comunes del contexto.
func (c *Client) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if c == nil || c.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	if common := GetCommonAttrs(ctx); len(common) > 0 {
		opts = append(opts, trace.WithAttributes(common...))
	}
	return c.tracer.Start(ctx, name, opts...)
}

// RecordError registra un error en el span actual
func (c *Client) RecordError(ctx context.Context, err error, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanAttributes añade atributos al span actual
func (c *Client) SetSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attrs...)
}

// GetTraceID extrae el TraceID del contexto
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	return span.SpanContext().TraceID().String()
}
