// Package domain contiene el modelo de datos del copiador, la taxonomía de errores
// y el pipeline puro de filtrado/transformación compartido por el relay y los endpoints.
//
// # Responsabilidades
//
//   - Tipos del modelo: Account, Link, TradeEvent, ConfigSnapshot y mensajes de control
//   - Pipeline Decide(event, link): único punto de verdad sobre cómo luce una copia
//   - Redondeo de volumen con decimal (sin deriva de float)
//   - Derivación de órdenes resting (Limit/Stop) para señales atrasadas
//   - Sistema de errores tipados (Error + ErrorCode)
//
// # Pipeline
//
// Decide evalúa en orden, cortando en el primer rechazo:
//
//  1. link deshabilitado                → RejectDisabled
//  2. símbolo fuera de allowed_symbols  → RejectSymbolNotAllowed
//  3. símbolo en blocked_symbols        → RejectSymbolBlocked
//  4. magic fuera de allowed_magic      → RejectMagicNotAllowed
//  5. magic en blocked_magic            → RejectMagicBlocked
//  6. límites de lote / órdenes pending
//
// Si se acepta un Open, se transforma símbolo, volumen y lado:
//
//	decision := domain.Decide(event, link)
//	if !decision.Accepted {
//	    // decision.Reason
//	}
//	copyEvent := decision.Event
//
// Close y Modify sólo pasan por el chequeo de link habilitado: no llevan símbolo,
// volumen ni lado que transformar y su destino se resuelve por el mapeo de órdenes.
//
// # Errores
//
//	err := domain.NewError(domain.ErrInvalidVolume, "volume rounds to zero")
//	err.WithDetail("volume", 0.001)
//
//	if domain.IsRetryable(domain.CodeOf(err)) {
//	    // reintentar con backoff fijo
//	}
package domain
