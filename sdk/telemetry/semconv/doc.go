// Package semconv define convenciones semánticas para atributos OpenTelemetry
// utilizados en logs, métricas y trazas del copiador.
//
// Uso básico:
//
//	attrs := []attribute.KeyValue{
//	    semconv.Echo.AccountID.String("M1"),
//	    semconv.Echo.Reason.String("symbol_blocked"),
//	}
//	client.Debug(ctx, "Copy rejected", attrs...)
package semconv
