package domain

import (
	"strings"
	"time"
)

// EventKind tipo de evento de trading.
type EventKind string

const (
	EventOpen   EventKind = "open"
	EventClose  EventKind = "close"
	EventModify EventKind = "modify"
)

// Side lado de la orden. Invert es una involución Buy↔Sell.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Invert retorna el lado opuesto. Lados desconocidos se retornan sin cambio.
func (s Side) Invert() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return s
	}
}

// Entry forma de entrada de la orden origen.
type Entry string

const (
	EntryMarket Entry = "market"
	EntryLimit  Entry = "limit"
	EntryStop   Entry = "stop"
)

// IsPending indica si la entrada es una orden pendiente.
func (e Entry) IsPending() bool {
	return e == EntryLimit || e == EntryStop
}

// OrderType tipo concreto enviado al terminal.
type OrderType string

const (
	OrderBuy       OrderType = "buy"
	OrderSell      OrderType = "sell"
	OrderBuyLimit  OrderType = "buy_limit"
	OrderSellLimit OrderType = "sell_limit"
	OrderBuyStop   OrderType = "buy_stop"
	OrderSellStop  OrderType = "sell_stop"
)

// IsPending indica si el tipo es una orden resting.
func (t OrderType) IsPending() bool {
	switch t {
	case OrderBuyLimit, OrderSellLimit, OrderBuyStop, OrderSellStop:
		return true
	default:
		return false
	}
}

// OrderTypeFor combina lado y entrada. Los sub-tipos pending se derivan aquí,
// nunca se invierten directamente.
func OrderTypeFor(side Side, entry Entry) OrderType {
	switch entry {
	case EntryLimit:
		if side == SideSell {
			return OrderSellLimit
		}
		return OrderBuyLimit
	case EntryStop:
		if side == SideSell {
			return OrderSellStop
		}
		return OrderBuyStop
	default:
		if side == SideSell {
			return OrderSell
		}
		return OrderBuy
	}
}

// TradeEvent acción de trading emitida por una cuenta origen.
//
// Inmutable una vez emitido: el router produce copias derivadas por destino.
type TradeEvent struct {
	EventID       string    `json:"event_id,omitempty"`
	Kind          EventKind `json:"event_kind"`
	SourceAccount string    `json:"source_account"`
	SourceOrderID int64     `json:"source_order_id"`
	Symbol        string    `json:"symbol,omitempty"`
	Side          Side      `json:"side,omitempty"`
	Entry         Entry     `json:"entry,omitempty"`
	Volume        float64   `json:"volume,omitempty"`
	OpenPrice     float64   `json:"open_price,omitempty"`
	StopLoss      float64   `json:"stop_loss,omitempty"`
	TakeProfit    float64   `json:"take_profit,omitempty"`
	MagicNumber   int64     `json:"magic_number,omitempty"`
	Comment       string    `json:"comment,omitempty"`
	CloseRatio    float64   `json:"close_ratio,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`

	// SourceEquity equity del origen al emitir; base del modo margin_ratio.
	SourceEquity float64 `json:"source_equity,omitempty"`

	// Transformed marca copias que ya pasaron por Decide en el relay.
	Transformed bool `json:"transformed,omitempty"`
}

// Validate verifica campos requeridos según el tipo de evento.
func (e *TradeEvent) Validate() error {
	if strings.TrimSpace(e.SourceAccount) == "" {
		return NewValidationError("source_account", e.SourceAccount, "source_account is required")
	}
	if e.SourceOrderID == 0 {
		return NewValidationError("source_order_id", e.SourceOrderID, "source_order_id is required")
	}
	if e.OccurredAt.IsZero() {
		return NewValidationError("occurred_at", e.OccurredAt, "occurred_at is required")
	}
	switch e.Kind {
	case EventOpen:
		if strings.TrimSpace(e.Symbol) == "" {
			return NewValidationError("symbol", e.Symbol, "symbol is required for open")
		}
		if e.Side != SideBuy && e.Side != SideSell {
			return NewValidationError("side", e.Side, "side must be buy or sell")
		}
		if e.Volume < 0 {
			return NewValidationError("volume", e.Volume, "volume cannot be negative")
		}
	case EventClose:
		if e.CloseRatio < 0 || e.CloseRatio > 1 {
			return NewValidationError("close_ratio", e.CloseRatio, "close_ratio must be within [0,1]")
		}
	case EventModify:
	default:
		return NewValidationError("event_kind", e.Kind, "unknown event kind")
	}
	return nil
}

// IsFullClose indica si un Close cierra todo el volumen.
func (e *TradeEvent) IsFullClose() bool {
	return e.CloseRatio <= 0 || e.CloseRatio >= 1
}

// Register alta explícita de una cuenta.
type Register struct {
	AccountID string    `json:"account_id"`
	Role      Role      `json:"role"`
	Platform  string    `json:"platform,omitempty"`
	Broker    string    `json:"broker,omitempty"`
	Version   string    `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate verifica campos requeridos.
func (r *Register) Validate() error {
	if strings.TrimSpace(r.AccountID) == "" {
		return NewValidationError("account_id", r.AccountID, "account_id is required")
	}
	if !r.Role.Valid() {
		return NewValidationError("role", r.Role, "role must be source or destination")
	}
	return nil
}

// Heartbeat latido periódico. También registra cuentas desconocidas.
type Heartbeat struct {
	AccountID      string    `json:"account_id"`
	Role           Role      `json:"role"`
	Platform       string    `json:"platform,omitempty"`
	Broker         string    `json:"broker,omitempty"`
	Version        string    `json:"version,omitempty"`
	Balance        float64   `json:"balance"`
	Equity         float64   `json:"equity"`
	OpenPositions  int       `json:"open_positions"`
	IsTradeAllowed bool      `json:"is_trade_allowed"`
	Timestamp      time.Time `json:"timestamp"`
}

// Validate verifica campos requeridos.
func (h *Heartbeat) Validate() error {
	if strings.TrimSpace(h.AccountID) == "" {
		return NewValidationError("account_id", h.AccountID, "account_id is required")
	}
	if !h.Role.Valid() {
		return NewValidationError("role", h.Role, "role must be source or destination")
	}
	return nil
}

// Unregister baja explícita de una cuenta.
type Unregister struct {
	AccountID string    `json:"account_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate verifica campos requeridos.
func (u *Unregister) Validate() error {
	if strings.TrimSpace(u.AccountID) == "" {
		return NewValidationError("account_id", u.AccountID, "account_id is required")
	}
	return nil
}

// ConfigRequest pide al relay los snapshots vigentes de un destino.
type ConfigRequest struct {
	AccountID string    `json:"account_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate verifica campos requeridos.
func (c *ConfigRequest) Validate() error {
	if strings.TrimSpace(c.AccountID) == "" {
		return NewValidationError("account_id", c.AccountID, "account_id is required")
	}
	return nil
}
