package metricbundle

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CopyMetrics bundle de métricas del copiador.
//
// # Relay
//
//   - echo.relay.events_routed: copias publicadas a un link activo
//   - echo.relay.events_dropped: eventos descartados (reason=inactive|rejected|malformed)
//   - echo.relay.config_published: snapshots publicados
//   - echo.relay.heartbeats: heartbeats procesados
//
// # Agent
//
//   - echo.agent.orders: resultado de órdenes (result=success|resting|failed|dropped)
//   - echo.agent.order_retries: reintentos de ejecución
//   - echo.agent.stale_signals: señales fuera de max_signal_delay_ms (action=drop|resting)
//   - echo.agent.signal_delay_ms: retraso observado de señales Open
type CopyMetrics struct {
	EventsRouted    metric.Int64Counter
	EventsDropped   metric.Int64Counter
	ConfigPublished metric.Int64Counter
	Heartbeats      metric.Int64Counter

	Orders        metric.Int64Counter
	OrderRetries  metric.Int64Counter
	StaleSignals  metric.Int64Counter
	SignalDelayMs metric.Float64Histogram
}

// NewCopyMetrics crea el bundle sobre un meter.
func NewCopyMetrics(meter metric.Meter) (*CopyMetrics, error) {
	m := &CopyMetrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.EventsRouted, "echo.relay.events_routed", "Copias publicadas a links activos", "{event}"},
		{&m.EventsDropped, "echo.relay.events_dropped", "Eventos descartados por el relay", "{event}"},
		{&m.ConfigPublished, "echo.relay.config_published", "Snapshots de configuración publicados", "{snapshot}"},
		{&m.Heartbeats, "echo.relay.heartbeats", "Heartbeats procesados", "{heartbeat}"},
		{&m.Orders, "echo.agent.orders", "Órdenes de copia por resultado", "{order}"},
		{&m.OrderRetries, "echo.agent.order_retries", "Reintentos de ejecución", "{retry}"},
		{&m.StaleSignals, "echo.agent.stale_signals", "Señales fuera de la ventana de retraso", "{signal}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
	}

	m.SignalDelayMs, err = meter.Float64Histogram(
		"echo.agent.signal_delay_ms",
		metric.WithDescription("Retraso entre occurred_at y la recepción en el destino"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordRouted registra una copia publicada.
func (m *CopyMetrics) RecordRouted(ctx context.Context, attrs ...attribute.KeyValue) {
	m.EventsRouted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDropped registra un evento descartado con su motivo.
func (m *CopyMetrics) RecordDropped(ctx context.Context, reason string, attrs ...attribute.KeyValue) {
	attrs = append(attrs, attribute.String("reason", reason))
	m.EventsDropped.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordConfigPublished registra un snapshot publicado.
func (m *CopyMetrics) RecordConfigPublished(ctx context.Context, attrs ...attribute.KeyValue) {
	m.ConfigPublished.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordHeartbeat registra un heartbeat procesado.
func (m *CopyMetrics) RecordHeartbeat(ctx context.Context, attrs ...attribute.KeyValue) {
	m.Heartbeats.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOrder registra el resultado final de una orden de copia.
func (m *CopyMetrics) RecordOrder(ctx context.Context, result string, attrs ...attribute.KeyValue) {
	attrs = append(attrs, attribute.String("result", result))
	m.Orders.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRetry registra un reintento de ejecución.
func (m *CopyMetrics) RecordRetry(ctx context.Context, attrs ...attribute.KeyValue) {
	m.OrderRetries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStaleSignal registra una señal atrasada y la acción tomada.
func (m *CopyMetrics) RecordStaleSignal(ctx context.Context, action string, attrs ...attribute.KeyValue) {
	attrs = append(attrs, attribute.String("action", action))
	m.StaleSignals.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSignalDelay registra el retraso de una señal.
func (m *CopyMetrics) RecordSignalDelay(ctx context.Context, delayMs float64, attrs ...attribute.KeyValue) {
	m.SignalDelayMs.Record(ctx, delayMs, metric.WithAttributes(attrs...))
}
