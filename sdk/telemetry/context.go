package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xKoRx/echo/sdk/telemetry/semconv"
)

// contextKey es el tipo para las claves de contexto
type contextKey string

const (
	commonAttrsKey contextKey = "telemetry_common_attrs"
	eventAttrsKey  contextKey = "telemetry_event_attrs"
	metricAttrsKey contextKey = "telemetry_metric_attrs"
)

// AppendCommonAttrs añade atributos comunes al contexto (para logs, métricas y trazas)
func AppendCommonAttrs(ctx context.Context, attrs ...attribute.KeyValue) context.Context {
	return appendAttrs(ctx, commonAttrsKey, attrs...)
}

// AppendEventAttrs añade atributos específicos para logs y spans
func AppendEventAttrs(ctx context.Context, attrs ...attribute.KeyValue) context.Context {
	return appendAttrs(ctx, eventAttrsKey, attrs...)
}

// AppendMetricAttrs añade atributos específicos para métricas
func AppendMetricAttrs(ctx context.Context, attrs ...attribute.KeyValue) context.Context {
	return appendAttrs(ctx, metricAttrsKey, attrs...)
}

// GetCommonAttrs extrae atributos comunes del contexto
func GetCommonAttrs(ctx context.Context) []attribute.KeyValue {
	return getAttrs(ctx, commonAttrsKey)
}

// GetEventAttrs extrae atributos de eventos del contexto
func GetEventAttrs(ctx context.Context) []attribute.KeyValue {
	return getAttrs(ctx, eventAttrsKey)
}

// GetMetricAttrs extrae atributos de métricas del contexto
func GetMetricAttrs(ctx context.Context) []attribute.KeyValue {
	return getAttrs(ctx, metricAttrsKey)
}

// WithTradeEvent añade a logs y spans la identidad de un evento de trade.
//
// eventID vacío se omite: los eventos recién emitidos por un origen aún no lo tienen.
func WithTradeEvent(ctx context.Context, eventID, sourceAccount string, sourceOrderID int64, kind string) context.Context {
	attrs := []attribute.KeyValue{
		semconv.Echo.SourceAccount.String(sourceAccount),
		semconv.Echo.SourceOrderID.Int64(sourceOrderID),
		semconv.Echo.EventKind.String(kind),
	}
	if eventID != "" {
		attrs = append(attrs, semconv.Echo.EventID.String(eventID))
	}
	return appendAttrs(ctx, eventAttrsKey, attrs...)
}

// WithAccount fija la cuenta dueña del proceso en los atributos comunes.
func WithAccount(ctx context.Context, component, accountID string) context.Context {
	return appendAttrs(ctx, commonAttrsKey,
		semconv.Echo.Component.String(component),
		semconv.Echo.AccountID.String(accountID),
	)
}

// appendAttrs es un helper interno para añadir atributos al contexto
func appendAttrs(ctx context.Context, key contextKey, attrs ...attribute.KeyValue) context.Context {
	existing := getAttrs(ctx, key)
	// copia para no compartir backing array entre contextos hermanos
	merged := make([]attribute.KeyValue, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, key, merged)
}

// getAttrs es un helper interno para extraer atributos del contexto
func getAttrs(ctx context.Context, key contextKey) []attribute.KeyValue {
	attrs, _ := ctx.Value(key).([]attribute.KeyValue)
	return attrs
}

