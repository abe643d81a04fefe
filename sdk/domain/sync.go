package domain

import (
	"strings"
	"time"
)

// SyncRequest un destino pide al origen de uno de sus links las posiciones abiertas.
type SyncRequest struct {
	AccountID     string    `json:"account_id"`
	SourceAccount string    `json:"source_account"`
	Timestamp     time.Time `json:"timestamp"`
}

// Validate verifica campos requeridos.
func (r *SyncRequest) Validate() error {
	if strings.TrimSpace(r.AccountID) == "" {
		return NewValidationError("account_id", r.AccountID, "account_id is required")
	}
	if strings.TrimSpace(r.SourceAccount) == "" {
		return NewValidationError("source_account", r.SourceAccount, "source_account is required")
	}
	return nil
}

// Position posición u orden resting abierta en la cuenta origen.
type Position struct {
	OrderID     int64     `json:"order_id"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Entry       Entry     `json:"entry,omitempty"`
	Volume      float64   `json:"volume"`
	OpenPrice   float64   `json:"open_price"`
	StopLoss    float64   `json:"stop_loss,omitempty"`
	TakeProfit  float64   `json:"take_profit,omitempty"`
	MagicNumber int64     `json:"magic_number,omitempty"`
	Comment     string    `json:"comment,omitempty"`
	OpenedAt    time.Time `json:"opened_at"`
}

// OpenEvent evento Open equivalente a la apertura de la posición.
//
// OccurredAt es la hora de apertura original, de modo que una posición vieja
// pasa por la misma política de señales atrasadas que cualquier Open.
func (p Position) OpenEvent(source string, sourceEquity float64) TradeEvent {
	return TradeEvent{
		Kind:          EventOpen,
		SourceAccount: source,
		SourceOrderID: p.OrderID,
		Symbol:        p.Symbol,
		Side:          p.Side,
		Entry:         p.Entry,
		Volume:        p.Volume,
		OpenPrice:     p.OpenPrice,
		StopLoss:      p.StopLoss,
		TakeProfit:    p.TakeProfit,
		MagicNumber:   p.MagicNumber,
		Comment:       p.Comment,
		OccurredAt:    p.OpenedAt,
		SourceEquity:  sourceEquity,
	}
}

// PositionSnapshot posiciones abiertas de un origen en un instante.
//
// DestinationAccount vacío reparte el snapshot a todos los destinos del origen.
type PositionSnapshot struct {
	SourceAccount      string     `json:"source_account"`
	DestinationAccount string     `json:"destination_account,omitempty"`
	Positions          []Position `json:"positions"`
	SourceEquity       float64    `json:"source_equity,omitempty"`
	Timestamp          time.Time  `json:"timestamp"`
}

// Validate verifica el origen y cada posición.
func (s *PositionSnapshot) Validate() error {
	if strings.TrimSpace(s.SourceAccount) == "" {
		return NewValidationError("source_account", s.SourceAccount, "source_account is required")
	}
	for _, p := range s.Positions {
		ev := p.OpenEvent(s.SourceAccount, s.SourceEquity)
		if err := ev.Validate(); err != nil {
			return err
		}
	}
	return nil
}
