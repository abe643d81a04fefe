// Package telemetry proporciona observabilidad para echo mediante los tres pilares:
//
// 1. Logs: Registro estructurado con zap (JSON en producción, consola en desarrollo)
// 2. Métricas: OpenTelemetry exportadas por OTLP/gRPC
// 3. Trazas: Trazado distribuido con OpenTelemetry
//
// Uso básico:
//
//	client, err := telemetry.New(ctx, "echo-relay", "production",
//	    telemetry.WithOTLPEndpoint("otel-collector:4317"),
//	    telemetry.WithLogLevel("info"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Shutdown(ctx)
//
//	ctx = telemetry.AppendEventAttrs(ctx, semconv.Echo.AccountID.String("M1"))
//	client.Info(ctx, "Heartbeat received")
//
//	ctx, span := client.StartSpan(ctx, "relay.route")
//	defer span.End()
//
// Sin endpoint OTLP, métricas y trazas quedan en providers no-op y sólo se emiten logs.
package telemetry
