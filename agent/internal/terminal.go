package internal

import (
	"context"

	"github.com/xKoRx/echo/sdk/domain"
)

// OrderRequest orden a colocar en el terminal.
//
// Price sólo aplica a órdenes resting; las de mercado se llenan al precio vigente.
type OrderRequest struct {
	Symbol      string           `json:"symbol"`
	Type        domain.OrderType `json:"type"`
	Volume      float64          `json:"volume"`
	Price       float64          `json:"price,omitempty"`
	StopLoss    float64          `json:"stop_loss,omitempty"`
	TakeProfit  float64          `json:"take_profit,omitempty"`
	MagicNumber int64            `json:"magic_number,omitempty"`
	Slippage    int              `json:"slippage,omitempty"`
	Comment     string           `json:"comment,omitempty"`
}

// Order orden abierta o pendiente reportada por el terminal.
type Order struct {
	OrderID    string           `json:"order_id"`
	Symbol     string           `json:"symbol"`
	Type       domain.OrderType `json:"type"`
	Volume     float64          `json:"volume"`
	Price      float64          `json:"price"`
	StopLoss   float64          `json:"stop_loss,omitempty"`
	TakeProfit float64          `json:"take_profit,omitempty"`
}

// Quote precios vigentes de un símbolo.
type Quote struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

// AccountInfo estado de la cuenta que viaja en cada heartbeat.
type AccountInfo struct {
	Balance        float64 `json:"balance"`
	Equity         float64 `json:"equity"`
	OpenPositions  int     `json:"open_positions"`
	IsTradeAllowed bool    `json:"is_trade_allowed"`
}

// Terminal capacidades de trading que expone el terminal local.
//
// El agent sólo las invoca. Los errores de ejecución llegan como *domain.Error
// con el código normalizado del broker.
type Terminal interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (string, error)

	// CloseOrder cierra volume lotes de una posición; volume 0 cierra todo.
	CloseOrder(ctx context.Context, orderID string, volume float64) error

	// CancelOrder elimina una orden resting.
	CancelOrder(ctx context.Context, orderID string) error

	ModifyOrder(ctx context.Context, orderID string, stopLoss, takeProfit float64) error
	OpenOrders(ctx context.Context) ([]Order, error)
	Quote(ctx context.Context, symbol string) (Quote, error)
	IsTradeAllowed(ctx context.Context) (bool, error)
	AccountInfo(ctx context.Context) (AccountInfo, error)
}

// TradeSource terminal origen que emite sus acciones de trading.
type TradeSource interface {
	TradeEvents() <-chan domain.TradeEvent
}

// PositionLister terminal origen capaz de listar sus posiciones abiertas.
// Lo usa la sincronización de posiciones para responder a un destino.
type PositionLister interface {
	Positions(ctx context.Context) ([]domain.Position, error)
}
