package domain

import (
	"errors"
	"fmt"
)

// ErrorCode representa un código de error del dominio de copiado.
type ErrorCode string

// Códigos de error estándar
const (
	// ErrNoError indica éxito (sin error)
	ErrNoError ErrorCode = "NO_ERROR"

	// Errores de validación
	ErrInvalidPrice         ErrorCode = "INVALID_PRICE"
	ErrInvalidStops         ErrorCode = "INVALID_STOPS"
	ErrInvalidVolume        ErrorCode = "INVALID_VOLUME"
	ErrInvalidSymbol        ErrorCode = "INVALID_SYMBOL"
	ErrMissingRequiredField ErrorCode = "MISSING_REQUIRED_FIELD"
	ErrMalformedMessage     ErrorCode = "MALFORMED_MESSAGE"

	// Errores de mercado/broker
	ErrMarketClosed    ErrorCode = "MARKET_CLOSED"
	ErrNoMoney         ErrorCode = "NO_MONEY"
	ErrPriceChanged    ErrorCode = "PRICE_CHANGED"
	ErrOffQuotes       ErrorCode = "OFF_QUOTES"
	ErrBrokerBusy      ErrorCode = "BROKER_BUSY"
	ErrRequote         ErrorCode = "REQUOTE"
	ErrTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"
	ErrTimeout         ErrorCode = "TIMEOUT"
	ErrTradeDisabled   ErrorCode = "TRADE_DISABLED"
	ErrBrokerRejected  ErrorCode = "BROKER_REJECTED"

	// Errores de sistema
	ErrUnknown        ErrorCode = "UNKNOWN"
	ErrConnectionLost ErrorCode = "CONNECTION_LOST"
	ErrDuplicateTrade ErrorCode = "DUPLICATE_TRADE"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrDelayExceeded  ErrorCode = "DELAY_EXCEEDED"
	ErrStaleConfig    ErrorCode = "STALE_CONFIG"
)

// Error representa un error del dominio con contexto.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implementa la interfaz error.
func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implementa la interfaz errors.Unwrap.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// WithDetail agrega un detalle al error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewError crea un nuevo Error.
//
// Example:
//
//	err := domain.NewError(domain.ErrInvalidVolume, "volume rounds to zero")
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError envuelve un error existente con contexto de dominio.
//
// Example:
//
//	err := domain.WrapError(domain.ErrConnectionLost, "relay stream failed", originalErr)
func WrapError(code ErrorCode, message string, wrapped error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: wrapped,
	}
}

// CodeOf extrae el ErrorCode de una cadena de errores.
//
// Retorna ErrNoError para nil y ErrUnknown si ningún eslabón es *Error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrNoError
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrUnknown
}

// IsRetryable indica si un error es retriable (puede reintentarse).
func IsRetryable(code ErrorCode) bool {
	switch code {
	case ErrBrokerBusy, ErrRequote, ErrTimeout, ErrTooManyRequests, ErrOffQuotes,
		ErrPriceChanged, ErrConnectionLost, ErrUnknown:
		return true
	default:
		return false
	}
}

// IsFatal indica si un error es fatal (no se debe reintentar).
func IsFatal(code ErrorCode) bool {
	switch code {
	case ErrInvalidSymbol, ErrInvalidVolume, ErrMissingRequiredField, ErrMalformedMessage,
		ErrDuplicateTrade, ErrTradeDisabled, ErrNoMoney, ErrMarketClosed:
		return true
	default:
		return false
	}
}

// ErrorFromMT4Code convierte un código de error MT4 a ErrorCode.
//
// Los terminales reportan el código nativo por el bridge; aquí se normaliza.
//
// Códigos MT4 comunes:
// - 129: ERR_INVALID_PRICE
// - 130: ERR_INVALID_STOPS
// - 131: ERR_INVALID_TRADE_VOLUME
// - 132: ERR_MARKET_CLOSED
// - 133: ERR_TRADE_DISABLED
// - 134: ERR_NOT_ENOUGH_MONEY
// - 135: ERR_PRICE_CHANGED
// - 136: ERR_OFF_QUOTES
// - 137: ERR_BROKER_BUSY
// - 138: ERR_REQUOTE
// - 141: ERR_TOO_MANY_REQUESTS
func ErrorFromMT4Code(mt4Code int) ErrorCode {
	switch mt4Code {
	case 0:
		return ErrNoError
	case 129:
		return ErrInvalidPrice
	case 130:
		return ErrInvalidStops
	case 131:
		return ErrInvalidVolume
	case 132:
		return ErrMarketClosed
	case 133:
		return ErrTradeDisabled
	case 134:
		return ErrNoMoney
	case 135:
		return ErrPriceChanged
	case 136:
		return ErrOffQuotes
	case 137:
		return ErrBrokerBusy
	case 138:
		return ErrRequote
	case 141:
		return ErrTooManyRequests
	case 4108:
		return ErrNotFound
	default:
		return ErrBrokerRejected
	}
}
