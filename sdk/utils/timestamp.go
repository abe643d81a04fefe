package utils

import (
	"time"
)

// NowUnixMilli retorna el timestamp actual en milisegundos.
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// UnixMilliToTime convierte milisegundos Unix a time.Time (UTC).
func UnixMilliToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ElapsedMs retorna los milisegundos transcurridos entre from y to.
//
// Puede ser negativo si el reloj del emisor está adelantado.
func ElapsedMs(from, to time.Time) int64 {
	return to.Sub(from).Milliseconds()
}
