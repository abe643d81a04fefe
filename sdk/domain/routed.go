package domain

import "time"

// RoutedEvent registro de una copia publicada por el relay, para visibilidad del operador.
type RoutedEvent struct {
	EventID            string    `json:"event_id"`
	Topic              string    `json:"topic"`
	LinkID             string    `json:"link_id"`
	SourceAccount      string    `json:"source_account"`
	DestinationAccount string    `json:"destination_account"`
	Kind               EventKind `json:"event_kind"`
	SourceOrderID      int64     `json:"source_order_id"`
	Symbol             string    `json:"symbol,omitempty"`
	Side               Side      `json:"side,omitempty"`
	Volume             float64   `json:"volume,omitempty"`
	Transformed        bool      `json:"transformed,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
	RoutedAt           time.Time `json:"routed_at"`
}

// NewRoutedEvent arma el registro de la copia publicada en topic.
func NewRoutedEvent(topic string, link Link, ev TradeEvent, routedAt time.Time) RoutedEvent {
	return RoutedEvent{
		EventID:            ev.EventID,
		Topic:              topic,
		LinkID:             link.LinkID,
		SourceAccount:      link.SourceAccount,
		DestinationAccount: link.DestinationAccount,
		Kind:               ev.Kind,
		SourceOrderID:      ev.SourceOrderID,
		Symbol:             ev.Symbol,
		Side:               ev.Side,
		Volume:             ev.Volume,
		Transformed:        ev.Transformed,
		OccurredAt:         ev.OccurredAt,
		RoutedAt:           routedAt,
	}
}
