package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RecordCounter incrementa un contador ad-hoc.
//
// Los atributos de métricas del contexto (AppendMetricAttrs) se agregan a los dados.
func (c *Client) RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
	counter, err := c.GetOrCreateCounter(name, "")
	if err != nil {
		c.Error(ctx, "failed to get counter", err, attribute.String("counter_name", name))
		return
	}

	counter.Add(ctx, value, metric.WithAttributes(mergeMetricAttrs(ctx, attrs)...))
}

// RecordHistogram registra un valor en un histograma ad-hoc
func (c *Client) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	histogram, err := c.GetOrCreateHistogram(name, "")
	if err != nil {
		c.Error(ctx, "failed to get histogram", err, attribute.String("histogram_name", name))
		return
	}

	histogram.Record(ctx, value, metric.WithAttributes(mergeMetricAttrs(ctx, attrs)...))
}

// RecordLatency es un helper para registrar latencias en milisegundos
func (c *Client) RecordLatency(ctx context.Context, operation string, latencyMs float64, attrs ...attribute.KeyValue) {
	c.RecordHistogram(ctx, operation+".latency_ms", latencyMs, attrs...)
}

func mergeMetricAttrs(ctx context.Context, attrs []attribute.KeyValue) []attribute.KeyValue {
	fromCtx := GetMetricAttrs(ctx)
	if len(fromCtx) == 0 {
		return attrs
	}
	out := make([]attribute.KeyValue, 0, len(fromCtx)+len(attrs))
	out = append(out, fromCtx...)
	return append(out, attrs...)
}
