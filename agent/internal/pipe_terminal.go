package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/ipc"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
)

// Comandos del protocolo con el EA.
const (
	cmdPlaceOrder     = "place_order"
	cmdCloseOrder     = "close_order"
	cmdCancelOrder    = "cancel_order"
	cmdModifyOrder    = "modify_order"
	cmdOpenOrders     = "open_orders"
	cmdPositions      = "positions"
	cmdQuote          = "quote"
	cmdAccountInfo    = "account_info"
	cmdTradeAllowed   = "is_trade_allowed"
	eventTrade        = "trade"
	pipeEventsBuffer  = 256
	pipeAcceptBackoff = time.Second
)

// PipeTerminal bridge al EA por Named Pipe (socket unix fuera de Windows).
//
// El agent escucha el pipe y el EA se conecta; una reconexión del EA reemplaza
// la sesión anterior. Sin sesión activa toda llamada falla con CONNECTION_LOST.
type PipeTerminal struct {
	config    *ipc.PipeConfig
	telemetry *telemetry.Client

	listener net.Listener
	events   chan domain.TradeEvent

	mu      sync.RWMutex
	session *ipc.Session

	wg sync.WaitGroup
}

// NewPipeTerminal crea el bridge. Listen abre el pipe.
func NewPipeTerminal(config *ipc.PipeConfig, tel *telemetry.Client) *PipeTerminal {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return &PipeTerminal{
		config:    config,
		telemetry: tel,
		events:    make(chan domain.TradeEvent, pipeEventsBuffer),
	}
}

// Listen abre el pipe y acepta conexiones del EA hasta que ctx termine.
//
// Un fallo al crear el pipe es fatal para el agent.
func (p *PipeTerminal) Listen(ctx context.Context) error {
	lis, err := ipc.Listen(p.config)
	if err != nil {
		return err
	}
	p.listener = lis

	p.wg.Add(1)
	go p.acceptLoop(ctx)

	p.telemetry.Info(ctx, "Terminal pipe listening", attribute.String("pipe_name", p.config.Name))
	return nil
}

func (p *PipeTerminal) acceptLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		conn, err := p.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			p.telemetry.Warn(ctx, "Terminal pipe accept failed", semconv.Echo.Reason.String(err.Error()))
			select {
			case <-ctx.Done():
				return
			case <-time.After(pipeAcceptBackoff):
			}
			continue
		}

		session := ipc.NewSession(conn, p.config.Timeout)
		p.mu.Lock()
		prev := p.session
		p.session = session
		p.mu.Unlock()
		if prev != nil {
			_ = prev.Close()
		}

		p.telemetry.Info(ctx, "Terminal connected", attribute.String("pipe_name", p.config.Name))
		p.wg.Add(1)
		go p.readEvents(ctx, session)
	}
}

// readEvents reenvía los eventos de trading del EA.
func (p *PipeTerminal) readEvents(ctx context.Context, session *ipc.Session) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-session.Done():
			p.telemetry.Warn(ctx, "Terminal disconnected", semconv.Echo.Reason.String(fmt.Sprint(session.Err())))
			return
		case msg := <-session.Events():
			if msg.Command != eventTrade {
				p.telemetry.Debug(ctx, "Ignoring terminal event", attribute.String("command", msg.Command))
				continue
			}
			var ev domain.TradeEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				p.telemetry.Warn(ctx, "Malformed terminal trade event", semconv.Echo.Reason.String(err.Error()))
				continue
			}
			select {
			case p.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// TradeEvents acciones del terminal origen.
func (p *PipeTerminal) TradeEvents() <-chan domain.TradeEvent { return p.events }

// Close cierra el pipe y la sesión activa.
func (p *PipeTerminal) Close() error {
	var err error
	if p.listener != nil {
		err = p.listener.Close()
	}
	p.mu.Lock()
	if p.session != nil {
		_ = p.session.Close()
	}
	p.mu.Unlock()
	p.wg.Wait()
	return err
}

func (p *PipeTerminal) call(ctx context.Context, command string, payload, result any) error {
	p.mu.RLock()
	session := p.session
	p.mu.RUnlock()
	if session == nil || session.Err() != nil {
		return domain.NewError(domain.ErrConnectionLost, "terminal not connected").WithDetail("command", command)
	}

	err := session.Call(ctx, command, payload, result)
	if err == nil {
		return nil
	}
	var remote *ipc.RemoteError
	if errors.As(err, &remote) {
		return domain.WrapError(domain.ErrorFromMT4Code(remote.Code), remote.Message, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrTimeout, command+" timed out", err)
	}
	return domain.WrapError(domain.ErrConnectionLost, command+" failed", err)
}

type orderRef struct {
	OrderID    string  `json:"order_id"`
	Volume     float64 `json:"volume,omitempty"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
}

// PlaceOrder coloca una orden y retorna el ticket del terminal.
func (p *PipeTerminal) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	var out orderRef
	if err := p.call(ctx, cmdPlaceOrder, req, &out); err != nil {
		return "", err
	}
	if out.OrderID == "" {
		return "", domain.NewError(domain.ErrBrokerRejected, "terminal returned empty order id")
	}
	return out.OrderID, nil
}

// CloseOrder cierra volume lotes; 0 cierra todo.
func (p *PipeTerminal) CloseOrder(ctx context.Context, orderID string, volume float64) error {
	return p.call(ctx, cmdCloseOrder, orderRef{OrderID: orderID, Volume: volume}, nil)
}

// CancelOrder elimina una orden resting.
func (p *PipeTerminal) CancelOrder(ctx context.Context, orderID string) error {
	return p.call(ctx, cmdCancelOrder, orderRef{OrderID: orderID}, nil)
}

// ModifyOrder cambia SL/TP.
func (p *PipeTerminal) ModifyOrder(ctx context.Context, orderID string, stopLoss, takeProfit float64) error {
	return p.call(ctx, cmdModifyOrder, orderRef{OrderID: orderID, StopLoss: stopLoss, TakeProfit: takeProfit}, nil)
}

// OpenOrders posiciones y resting vigentes.
func (p *PipeTerminal) OpenOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	if err := p.call(ctx, cmdOpenOrders, struct{}{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Positions posiciones del terminal origen con sus tickets numéricos.
func (p *PipeTerminal) Positions(ctx context.Context) ([]domain.Position, error) {
	var out []domain.Position
	if err := p.call(ctx, cmdPositions, struct{}{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Quote precio vigente de symbol.
func (p *PipeTerminal) Quote(ctx context.Context, symbol string) (Quote, error) {
	var out Quote
	err := p.call(ctx, cmdQuote, map[string]string{"symbol": symbol}, &out)
	return out, err
}

// IsTradeAllowed switch de auto-trading del terminal.
func (p *PipeTerminal) IsTradeAllowed(ctx context.Context) (bool, error) {
	var out struct {
		Allowed bool `json:"allowed"`
	}
	err := p.call(ctx, cmdTradeAllowed, struct{}{}, &out)
	return out.Allowed, err
}

// AccountInfo balance, equity y posiciones.
func (p *PipeTerminal) AccountInfo(ctx context.Context) (AccountInfo, error) {
	var out AccountInfo
	err := p.call(ctx, cmdAccountInfo, struct{}{}, &out)
	return out, err
}
