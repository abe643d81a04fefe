// Package utils provee utilidades comunes para el SDK de Echo.
//
// # Utilidades Incluidas
//
// - UUID: Generación de UUIDv7 ordenables por tiempo
// - Timestamp: Helpers para timestamps Unix en ms
// - Clock: Reloj inyectable; el real usa la lectura monotónica de time.Now
//
// # Uso de UUID
//
//	id := utils.GenerateUUIDv7()
//
// # Uso de Clock
//
// Los componentes sensibles al tiempo reciben un Clock para poder testearse:
//
//	engine := NewStatusEngine(utils.SystemClock{}, 30*time.Second)
//
//	// En tests
//	clock := utils.NewFakeClock(time.Unix(0, 0))
//	clock.Advance(61 * time.Second)
package utils
