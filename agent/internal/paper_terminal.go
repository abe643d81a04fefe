package internal

import (
	"context"
	"sort"
	"sync"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/utils"
)

// PaperTerminal terminal simulado en memoria.
//
// Las órdenes de mercado se llenan al quote vigente y las resting se activan
// cuando SetQuote cruza su precio. Sirve para dry-run y pruebas.
type PaperTerminal struct {
	mu           sync.Mutex
	quotes       map[string]Quote
	orders       map[string]*Order
	balance      float64
	tradeAllowed bool
}

// NewPaperTerminal crea un terminal con el balance indicado.
func NewPaperTerminal(balance float64) *PaperTerminal {
	return &PaperTerminal{
		quotes:       make(map[string]Quote),
		orders:       make(map[string]*Order),
		balance:      balance,
		tradeAllowed: true,
	}
}

// SetTradeAllowed simula el switch de auto-trading del terminal.
func (p *PaperTerminal) SetTradeAllowed(allowed bool) {
	p.mu.Lock()
	p.tradeAllowed = allowed
	p.mu.Unlock()
}

// SetQuote actualiza precios y activa las resting que crucen.
func (p *PaperTerminal) SetQuote(symbol string, bid, ask float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.quotes[symbol] = Quote{Symbol: symbol, Bid: bid, Ask: ask}
	for _, o := range p.orders {
		if o.Symbol != symbol || !o.Type.IsPending() {
			continue
		}
		if triggered(o.Type, o.Price, bid, ask) {
			o.Type = marketType(o.Type)
		}
	}
}

func triggered(t domain.OrderType, price, bid, ask float64) bool {
	switch t {
	case domain.OrderBuyLimit:
		return ask <= price
	case domain.OrderBuyStop:
		return ask >= price
	case domain.OrderSellLimit:
		return bid >= price
	case domain.OrderSellStop:
		return bid <= price
	}
	return false
}

func marketType(t domain.OrderType) domain.OrderType {
	switch t {
	case domain.OrderBuyLimit, domain.OrderBuyStop:
		return domain.OrderBuy
	case domain.OrderSellLimit, domain.OrderSellStop:
		return domain.OrderSell
	}
	return t
}

// PlaceOrder coloca una orden y retorna su id.
func (p *PaperTerminal) PlaceOrder(_ context.Context, req OrderRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.tradeAllowed {
		return "", domain.NewError(domain.ErrTradeDisabled, "auto trading disabled")
	}
	if domain.IsZeroVolume(req.Volume) {
		return "", domain.NewError(domain.ErrInvalidVolume, "volume rounds to zero").WithDetail("volume", req.Volume)
	}
	q, ok := p.quotes[req.Symbol]
	if !ok {
		return "", domain.NewError(domain.ErrInvalidSymbol, "no quote for symbol").WithDetail("symbol", req.Symbol)
	}

	order := &Order{
		OrderID:    utils.GenerateUUIDv7(),
		Symbol:     req.Symbol,
		Type:       req.Type,
		Volume:     req.Volume,
		Price:      req.Price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	}
	switch req.Type {
	case domain.OrderBuy:
		order.Price = q.Ask
	case domain.OrderSell:
		order.Price = q.Bid
	default:
		if !req.Type.IsPending() {
			return "", domain.NewError(domain.ErrBrokerRejected, "unknown order type").WithDetail("type", req.Type)
		}
		if req.Price <= 0 {
			return "", domain.NewError(domain.ErrInvalidPrice, "resting order requires price")
		}
	}
	p.orders[order.OrderID] = order
	return order.OrderID, nil
}

// CloseOrder cierra total o parcialmente una posición.
func (p *PaperTerminal) CloseOrder(_ context.Context, orderID string, volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[orderID]
	if !ok || o.Type.IsPending() {
		return domain.NewError(domain.ErrNotFound, "position not found").WithDetail("order_id", orderID)
	}
	if volume <= 0 || volume >= o.Volume {
		delete(p.orders, orderID)
		return nil
	}
	o.Volume = domain.RoundVolume(o.Volume-volume, 1)
	return nil
}

// CancelOrder elimina una orden resting.
func (p *PaperTerminal) CancelOrder(_ context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[orderID]
	if !ok || !o.Type.IsPending() {
		return domain.NewError(domain.ErrNotFound, "pending order not found").WithDetail("order_id", orderID)
	}
	delete(p.orders, orderID)
	return nil
}

// ModifyOrder cambia SL/TP.
func (p *PaperTerminal) ModifyOrder(_ context.Context, orderID string, stopLoss, takeProfit float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[orderID]
	if !ok {
		return domain.NewError(domain.ErrNotFound, "order not found").WithDetail("order_id", orderID)
	}
	o.StopLoss = stopLoss
	o.TakeProfit = takeProfit
	return nil
}

// OpenOrders posiciones y resting ordenadas por id.
func (p *PaperTerminal) OpenOrders(_ context.Context) ([]Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Order, 0, len(p.orders))
	for _, o := range p.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

// Quote precio vigente.
func (p *PaperTerminal) Quote(_ context.Context, symbol string) (Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.quotes[symbol]
	if !ok {
		return Quote{}, domain.NewError(domain.ErrInvalidSymbol, "no quote for symbol").WithDetail("symbol", symbol)
	}
	return q, nil
}

// IsTradeAllowed estado del switch de auto-trading.
func (p *PaperTerminal) IsTradeAllowed(_ context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tradeAllowed, nil
}

// AccountInfo balance fijo; equity igual al balance.
func (p *PaperTerminal) AccountInfo(_ context.Context) (AccountInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	positions := 0
	for _, o := range p.orders {
		if !o.Type.IsPending() {
			positions++
		}
	}
	return AccountInfo{
		Balance:        p.balance,
		Equity:         p.balance,
		OpenPositions:  positions,
		IsTradeAllowed: p.tradeAllowed,
	}, nil
}
