package internal

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/metricbundle"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"github.com/xKoRx/echo/sdk/utils"
)

// Outcome resultado de procesar un evento en el destino.
type Outcome string

const (
	OutcomeExecuted  Outcome = "executed"
	OutcomeResting   Outcome = "resting"
	OutcomeClosed    Outcome = "closed"
	OutcomeModified  Outcome = "modified"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeDropped   Outcome = "dropped"
	OutcomeNoop      Outcome = "noop"
	OutcomeFailed    Outcome = "failed"
)

// Acciones ante una señal atrasada.
const (
	staleActionDrop    = "drop"
	staleActionResting = "resting"
)

// Reconciler ejecuta copias en el terminal y mantiene el ledger de órdenes.
//
// Máquina de estados del destino:
//   - Open: duplicado → no-op; en ventana → mercado con reintentos; atrasado →
//     drop o resting al precio original según use_pending_fallback
//   - Close: cierra el confirmado y cancela el pending, los que existan
//   - Modify: SL/TP sólo sobre el confirmado
//
// Los reintentos usan backoff fijo y tope duro; nunca se reintenta indefinidamente.
type Reconciler struct {
	terminal  Terminal
	ledger    *OrderLedger
	clock     utils.Clock
	backoff   time.Duration
	sleep     func(time.Duration)
	telemetry *telemetry.Client
	metrics   *metricbundle.CopyMetrics
}

// NewReconciler crea el reconciler.
func NewReconciler(terminal Terminal, ledger *OrderLedger, clock utils.Clock, backoff time.Duration, tel *telemetry.Client) *Reconciler {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return &Reconciler{
		terminal:  terminal,
		ledger:    ledger,
		clock:     clock,
		backoff:   backoff,
		sleep:     time.Sleep,
		telemetry: tel,
		metrics:   tel.Metrics(),
	}
}

// Handle procesa un evento recibido para link.
//
// Los eventos que no llegan transformados desde el relay pasan por Decide aquí:
// el destino es la autoridad de filtrado.
func (r *Reconciler) Handle(ctx context.Context, link domain.Link, ev domain.TradeEvent) Outcome {
	ctx, span := r.telemetry.StartSpan(ctx, "agent.reconcile")
	defer span.End()

	ctx = telemetry.WithTradeEvent(ctx, ev.EventID, ev.SourceAccount, ev.SourceOrderID, string(ev.Kind))
	ctx = telemetry.AppendEventAttrs(ctx, semconv.Echo.LinkID.String(link.LinkID))

	if ev.Kind == domain.EventOpen && !ev.Transformed && link.LotCalculationMode == domain.LotModeMarginRatio {
		link.EquityRatio = r.equityRatio(ctx, ev)
	}

	decision := domain.Decide(ev, link)
	if !decision.Accepted {
		r.telemetry.Debug(ctx, "Event rejected by link filters", semconv.Echo.Reason.String(string(decision.Reason)))
		r.metrics.RecordOrder(ctx, semconv.StatusValues.Rejected)
		return OutcomeRejected
	}
	ev = decision.Event

	switch ev.Kind {
	case domain.EventOpen:
		return r.open(ctx, link, ev)
	case domain.EventClose:
		return r.close(ctx, link, ev)
	case domain.EventModify:
		return r.modify(ctx, link, ev)
	default:
		r.telemetry.Warn(ctx, "Unknown event kind")
		return OutcomeNoop
	}
}

// equityRatio equity propia / equity del origen al emitir el evento.
// Sin alguno de los dos datos retorna 0 y el volumen usa el multiplicador.
func (r *Reconciler) equityRatio(ctx context.Context, ev domain.TradeEvent) float64 {
	info, err := r.terminal.AccountInfo(ctx)
	if err != nil {
		r.telemetry.Debug(ctx, "Account info unavailable, margin ratio falls back to multiplier",
			semconv.Echo.ErrorCode.String(string(domain.CodeOf(err))))
		return 0
	}
	ratio := domain.EquityRatio(info.Equity, ev.SourceEquity)
	if ratio == 0 {
		r.telemetry.Debug(ctx, "Equity missing, margin ratio falls back to multiplier",
			attribute.Float64("equity", info.Equity),
			attribute.Float64("source_equity", ev.SourceEquity),
		)
	}
	return ratio
}

func (r *Reconciler) open(ctx context.Context, link domain.Link, ev domain.TradeEvent) Outcome {
	exists, err := r.ledger.Has(ev.SourceAccount, ev.SourceOrderID)
	if err != nil {
		r.telemetry.Error(ctx, "Ledger lookup failed", err)
		return OutcomeFailed
	}
	if exists {
		r.telemetry.Debug(ctx, "Duplicate open suppressed")
		return OutcomeDuplicate
	}

	delayMs := r.clock.Now().Sub(ev.OccurredAt).Milliseconds()
	r.metrics.RecordSignalDelay(ctx, float64(delayMs))
	ctx = telemetry.AppendEventAttrs(ctx, semconv.Echo.DelayMs.Int64(delayMs))

	if allowed, err := r.terminal.IsTradeAllowed(ctx); err == nil && !allowed {
		r.telemetry.Warn(ctx, "Auto trading disabled on terminal, open dropped")
		r.metrics.RecordOrder(ctx, semconv.StatusValues.Failed)
		return OutcomeFailed
	}

	req := OrderRequest{
		Symbol:      ev.Symbol,
		Type:        domain.OrderTypeFor(ev.Side, ev.Entry),
		Volume:      ev.Volume,
		StopLoss:    ev.StopLoss,
		TakeProfit:  ev.TakeProfit,
		MagicNumber: ev.MagicNumber,
		Slippage:    link.MaxSlippage,
		Comment:     copyComment(ev),
	}

	switch {
	case ev.Entry.IsPending():
		req.Price = ev.OpenPrice
		return r.placeResting(ctx, link, ev, req)

	case delayMs <= link.MaxSignalDelayMs:
		return r.placeMarket(ctx, link, ev, req)

	case !link.UsePendingFallback:
		r.telemetry.Info(ctx, "Stale signal dropped", attribute.Int64("max_signal_delay_ms", link.MaxSignalDelayMs))
		r.metrics.RecordStaleSignal(ctx, staleActionDrop)
		r.metrics.RecordOrder(ctx, semconv.StatusValues.Dropped)
		return OutcomeDropped

	default:
		quote, err := r.terminal.Quote(ctx, ev.Symbol)
		if err != nil {
			r.telemetry.Warn(ctx, "Quote unavailable, stale signal dropped",
				semconv.Echo.ErrorCode.String(string(domain.CodeOf(err))),
				semconv.Echo.Reason.String(err.Error()),
			)
			r.metrics.RecordOrder(ctx, semconv.StatusValues.Failed)
			return OutcomeFailed
		}
		req.Type = domain.RestingOrderType(ev.Side, ev.OpenPrice, quote.Bid, quote.Ask)
		req.Price = ev.OpenPrice
		r.metrics.RecordStaleSignal(ctx, staleActionResting)
		return r.placeResting(ctx, link, ev, req)
	}
}

func (r *Reconciler) placeMarket(ctx context.Context, link domain.Link, ev domain.TradeEvent, req OrderRequest) Outcome {
	orderID, err := r.place(ctx, link, req)
	if err != nil {
		return OutcomeFailed
	}

	if err := r.ledger.PutConfirmed(r.mapping(link, ev, req, orderID)); err != nil {
		r.telemetry.Error(ctx, "Failed to record confirmed mapping", err, semconv.Echo.DestinationOrderID.String(orderID))
	}
	r.metrics.RecordOrder(ctx, semconv.StatusValues.Success)
	r.telemetry.Info(ctx, "Copy executed",
		semconv.Echo.DestinationOrderID.String(orderID),
		semconv.Echo.Symbol.String(req.Symbol),
		semconv.Echo.OrderType.String(string(req.Type)),
		semconv.Echo.LotSize.Float64(req.Volume),
	)
	return OutcomeExecuted
}

func (r *Reconciler) placeResting(ctx context.Context, link domain.Link, ev domain.TradeEvent, req OrderRequest) Outcome {
	orderID, err := r.place(ctx, link, req)
	if err != nil {
		return OutcomeFailed
	}

	if err := r.ledger.PutPending(r.mapping(link, ev, req, orderID)); err != nil {
		r.telemetry.Error(ctx, "Failed to record pending mapping", err, semconv.Echo.DestinationOrderID.String(orderID))
	}
	r.metrics.RecordOrder(ctx, semconv.StatusValues.Resting)
	r.telemetry.Info(ctx, "Resting order placed",
		semconv.Echo.DestinationOrderID.String(orderID),
		semconv.Echo.Symbol.String(req.Symbol),
		semconv.Echo.OrderType.String(string(req.Type)),
		semconv.Echo.Price.Float64(req.Price),
		semconv.Echo.LotSize.Float64(req.Volume),
	)
	return OutcomeResting
}

// place valida el volumen y coloca la orden con reintentos.
func (r *Reconciler) place(ctx context.Context, link domain.Link, req OrderRequest) (string, error) {
	if domain.IsZeroVolume(req.Volume) {
		err := domain.NewError(domain.ErrInvalidVolume, "volume rounds to zero").WithDetail("volume", req.Volume)
		r.abandon(ctx, "Copy not executable", err)
		return "", err
	}

	var orderID string
	err := r.retry(ctx, link.MaxRetries, func() error {
		id, err := r.terminal.PlaceOrder(ctx, req)
		orderID = id
		return err
	})
	if err != nil {
		r.abandon(ctx, "Copy abandoned after retries", err)
		return "", err
	}
	return orderID, nil
}

func (r *Reconciler) abandon(ctx context.Context, msg string, err error) {
	r.telemetry.Warn(ctx, msg,
		semconv.Echo.ErrorCode.String(string(domain.CodeOf(err))),
		semconv.Echo.Reason.String(err.Error()),
	)
	r.metrics.RecordOrder(ctx, semconv.StatusValues.Failed)
}

// retry ejecuta op hasta 1+maxRetries veces con espera fija.
//
// Un error fatal del broker o una orden inexistente cortan los reintentos.
func (r *Reconciler) retry(ctx context.Context, maxRetries int, op func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			r.metrics.RecordRetry(ctx, semconv.Echo.Attempt.Int(attempt))
			r.sleep(r.backoff)
		}
		if err = op(); err == nil {
			return nil
		}
		code := domain.CodeOf(err)
		r.telemetry.Debug(ctx, "Terminal call failed",
			semconv.Echo.Attempt.Int(attempt),
			semconv.Echo.ErrorCode.String(string(code)),
		)
		if domain.IsFatal(code) || code == domain.ErrNotFound {
			return err
		}
	}
	return err
}

func (r *Reconciler) mapping(link domain.Link, ev domain.TradeEvent, req OrderRequest, orderID string) Mapping {
	return Mapping{
		LinkID:             link.LinkID,
		SourceAccount:      ev.SourceAccount,
		SourceOrderID:      ev.SourceOrderID,
		DestinationOrderID: orderID,
		Symbol:             req.Symbol,
		OrderType:          req.Type,
		Volume:             req.Volume,
		CreatedAt:          r.clock.Now(),
	}
}

func (r *Reconciler) close(ctx context.Context, link domain.Link, ev domain.TradeEvent) Outcome {
	confirmed, hasConfirmed, err := r.ledger.Confirmed(ev.SourceAccount, ev.SourceOrderID)
	if err != nil {
		r.telemetry.Error(ctx, "Ledger lookup failed", err)
		return OutcomeFailed
	}
	pending, hasPending, err := r.ledger.Pending(ev.SourceAccount, ev.SourceOrderID)
	if err != nil {
		r.telemetry.Error(ctx, "Ledger lookup failed", err)
		return OutcomeFailed
	}
	if !hasConfirmed && !hasPending {
		r.telemetry.Debug(ctx, "Close without mapping")
		return OutcomeNoop
	}

	outcome := OutcomeClosed
	if hasConfirmed && !r.closeConfirmed(ctx, link, confirmed, ev) {
		outcome = OutcomeFailed
	}
	if hasPending && ev.IsFullClose() && !r.cancelPending(ctx, pending) {
		outcome = OutcomeFailed
	}
	return outcome
}

func (r *Reconciler) closeConfirmed(ctx context.Context, link domain.Link, m Mapping, ev domain.TradeEvent) bool {
	volume := 0.0
	if !ev.IsFullClose() {
		volume = domain.RoundVolume(m.Volume, ev.CloseRatio)
		if domain.IsZeroVolume(volume) {
			r.telemetry.Debug(ctx, "Partial close rounds to zero", attribute.Float64("close_ratio", ev.CloseRatio))
			return true
		}
		if volume >= m.Volume {
			volume = 0
		}
	}

	err := r.retry(ctx, link.MaxRetries, func() error {
		return r.terminal.CloseOrder(ctx, m.DestinationOrderID, volume)
	})
	if err != nil && domain.CodeOf(err) != domain.ErrNotFound {
		r.telemetry.Warn(ctx, "Close failed, mapping kept",
			semconv.Echo.DestinationOrderID.String(m.DestinationOrderID),
			semconv.Echo.ErrorCode.String(string(domain.CodeOf(err))),
			semconv.Echo.Reason.String(err.Error()),
		)
		return false
	}

	if volume > 0 && err == nil {
		m.Volume = domain.RoundVolume(m.Volume-volume, 1)
		if err := r.ledger.PutConfirmed(m); err != nil {
			r.telemetry.Error(ctx, "Failed to update mapping volume", err)
		}
		r.telemetry.Info(ctx, "Copy partially closed",
			semconv.Echo.DestinationOrderID.String(m.DestinationOrderID),
			semconv.Echo.LotSize.Float64(volume),
		)
		return true
	}

	if err := r.ledger.DeleteConfirmed(m.SourceAccount, m.SourceOrderID); err != nil {
		r.telemetry.Error(ctx, "Failed to delete confirmed mapping", err)
	}
	r.telemetry.Info(ctx, "Copy closed", semconv.Echo.DestinationOrderID.String(m.DestinationOrderID))
	return true
}

func (r *Reconciler) cancelPending(ctx context.Context, m Mapping) bool {
	err := r.terminal.CancelOrder(ctx, m.DestinationOrderID)
	if err != nil && domain.CodeOf(err) != domain.ErrNotFound {
		r.telemetry.Warn(ctx, "Cancel failed, pending mapping kept",
			semconv.Echo.DestinationOrderID.String(m.DestinationOrderID),
			semconv.Echo.Reason.String(err.Error()),
		)
		return false
	}
	if err := r.ledger.DeletePending(m.SourceAccount, m.SourceOrderID); err != nil {
		r.telemetry.Error(ctx, "Failed to delete pending mapping", err)
	}
	r.telemetry.Info(ctx, "Resting order cancelled", semconv.Echo.DestinationOrderID.String(m.DestinationOrderID))
	return true
}

func (r *Reconciler) modify(ctx context.Context, link domain.Link, ev domain.TradeEvent) Outcome {
	m, ok, err := r.ledger.Confirmed(ev.SourceAccount, ev.SourceOrderID)
	if err != nil {
		r.telemetry.Error(ctx, "Ledger lookup failed", err)
		return OutcomeFailed
	}
	if !ok {
		r.telemetry.Debug(ctx, "Modify without confirmed mapping")
		return OutcomeNoop
	}

	err = r.retry(ctx, link.MaxRetries, func() error {
		return r.terminal.ModifyOrder(ctx, m.DestinationOrderID, ev.StopLoss, ev.TakeProfit)
	})
	if err != nil {
		r.telemetry.Warn(ctx, "Modify abandoned after retries",
			semconv.Echo.DestinationOrderID.String(m.DestinationOrderID),
			semconv.Echo.Reason.String(err.Error()),
		)
		return OutcomeFailed
	}
	r.telemetry.Info(ctx, "Copy modified",
		semconv.Echo.DestinationOrderID.String(m.DestinationOrderID),
		attribute.Float64("stop_loss", ev.StopLoss),
		attribute.Float64("take_profit", ev.TakeProfit),
	)
	return OutcomeModified
}

// Sync abre las posiciones de snap que el destino todavía no copió.
//
// Cada posición entra como un Open con su hora de apertura original: las ya
// mapeadas quedan como duplicado y las viejas siguen la política de atraso.
func (r *Reconciler) Sync(ctx context.Context, link domain.Link, snap domain.PositionSnapshot) map[Outcome]int {
	outcomes := make(map[Outcome]int)
	for _, p := range snap.Positions {
		outcomes[r.Handle(ctx, link, p.OpenEvent(snap.SourceAccount, snap.SourceEquity))]++
	}
	r.telemetry.Info(ctx, "Positions synced",
		semconv.Echo.LinkID.String(link.LinkID),
		semconv.Echo.SourceAccount.String(snap.SourceAccount),
		attribute.Int("positions", len(snap.Positions)),
		attribute.Int("opened", outcomes[OutcomeExecuted]+outcomes[OutcomeResting]),
	)
	return outcomes
}

// Reconcile revisa las resting contra el terminal.
//
// Una resting que pasó a posición se promueve a confirmed; una que ya no
// existe se olvida.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	pending, err := r.ledger.ListPending()
	if err != nil || len(pending) == 0 {
		return err
	}

	orders, err := r.terminal.OpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("open orders: %w", err)
	}
	byID := make(map[string]Order, len(orders))
	for _, o := range orders {
		byID[o.OrderID] = o
	}

	for _, m := range pending {
		attrs := []attribute.KeyValue{
			semconv.Echo.SourceOrderID.Int64(m.SourceOrderID),
			semconv.Echo.DestinationOrderID.String(m.DestinationOrderID),
		}
		o, ok := byID[m.DestinationOrderID]
		switch {
		case !ok:
			if err := r.ledger.DeletePending(m.SourceAccount, m.SourceOrderID); err != nil {
				return err
			}
			r.telemetry.Info(ctx, "Resting order vanished, mapping forgotten", attrs...)
		case !o.Type.IsPending():
			if err := r.ledger.Promote(m.SourceAccount, m.SourceOrderID, o.Type); err != nil {
				return err
			}
			r.telemetry.Info(ctx, "Resting order filled, mapping promoted", attrs...)
		}
	}
	return nil
}

func copyComment(ev domain.TradeEvent) string {
	return fmt.Sprintf("echo:%s:%d", ev.SourceAccount, ev.SourceOrderID)
}
