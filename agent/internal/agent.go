// Package internal contiene el endpoint client de Echo.
//
// Un Agent atiende una cuenta: si es origen reenvía sus eventos de trading al
// relay; si es destino aplica snapshots de configuración y ejecuta las copias
// recibidas sobre su terminal.
package internal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/ipc"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"github.com/xKoRx/echo/sdk/utils"
	"github.com/xKoRx/echo/sdk/wire"
)

const shutdownDrainTimeout = 500 * time.Millisecond

// relayLink lo que el Agent necesita del relay.
type relayLink interface {
	Subscriptions
	Send(frame []byte) bool
	Frames() <-chan []byte
}

// Agent endpoint client de una cuenta.
//
// Dos goroutines: heartbeat (nunca toca el terminal) y executor (frames del
// relay, eventos del terminal y tick). Todo cambio de estado de copias ocurre
// en el executor.
type Agent struct {
	config    *Config
	codec     wire.Codec
	clock     utils.Clock
	telemetry *telemetry.Client
	ownsTel   bool

	relay       relayLink
	relayClient *RelayClient
	terminal    Terminal
	pipe        *PipeTerminal
	ledger      *OrderLedger
	applier     *ConfigApplier
	reconciler  *Reconciler

	// info último AccountInfo leído por el executor; lo consume el heartbeat.
	infoMu sync.RWMutex
	info   AccountInfo

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// Option personaliza dependencias del Agent.
type Option func(*Agent)

// WithTerminal usa un terminal ya construido en vez del bridge configurado.
func WithTerminal(t Terminal) Option { return func(a *Agent) { a.terminal = t } }

// WithRelay usa un enlace al relay ya construido.
func WithRelay(r relayLink) Option { return func(a *Agent) { a.relay = r } }

// WithTelemetry usa un cliente de telemetría existente; el Agent no lo cierra.
func WithTelemetry(tel *telemetry.Client) Option { return func(a *Agent) { a.telemetry = tel } }

// WithClock reloj para timestamps y delay de señales.
func WithClock(clock utils.Clock) Option { return func(a *Agent) { a.clock = clock } }

// New crea el Agent: abre el ledger, el terminal y el cliente del relay.
func New(ctx context.Context, config *Config, opts ...Option) (*Agent, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	agentCtx, cancel := context.WithCancel(ctx)
	a := &Agent{config: config, ctx: agentCtx, cancel: cancel}
	for _, opt := range opts {
		opt(a)
	}
	if a.clock == nil {
		a.clock = utils.SystemClock{}
	}

	if a.telemetry == nil {
		tel, err := telemetry.New(agentCtx, config.Telemetry.ServiceName, config.Environment, config.Telemetry.Options()...)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		a.telemetry = tel
		a.ownsTel = true
	}
	a.ctx = telemetry.WithAccount(a.ctx, semconv.ComponentValues.Agent, config.Account.ID)

	if err := a.build(); err != nil {
		a.release()
		return nil, err
	}

	a.telemetry.Info(a.ctx, "Agent initialized",
		attribute.String("role", string(config.Account.Role)),
		attribute.String("relay_addr", config.Relay.Addr),
		attribute.String("bridge", config.Terminal.Bridge),
	)
	return a, nil
}

func (a *Agent) build() error {
	codec, err := wire.CodecByName(a.config.Relay.Codec)
	if err != nil {
		return err
	}
	a.codec = codec

	if a.terminal == nil {
		switch a.config.Terminal.Bridge {
		case BridgePaper:
			a.terminal = NewPaperTerminal(0)
		default:
			pipeCfg := ipc.DefaultPipeConfig(a.config.Terminal.PipeName)
			if a.config.Terminal.CallTimeoutMs > 0 {
				pipeCfg.Timeout = time.Duration(a.config.Terminal.CallTimeoutMs) * time.Millisecond
			}
			a.pipe = NewPipeTerminal(pipeCfg, a.telemetry)
			a.terminal = a.pipe
		}
	}

	if a.relay == nil {
		client, err := NewRelayClient(RelayClientOptions{
			Target:           a.config.Relay.Addr,
			Backoff:          a.config.ReconnectBackoff(),
			SendQueue:        a.config.Relay.SendQueue,
			KeepAliveTime:    time.Duration(a.config.Relay.KeepAliveTimeS) * time.Second,
			KeepAliveTimeout: time.Duration(a.config.Relay.KeepAliveTimeoutS) * time.Second,
		}, a.telemetry)
		if err != nil {
			return fmt.Errorf("failed to create relay client: %w", err)
		}
		a.relayClient = client
		a.relay = client
	}

	if a.config.Account.Role == domain.RoleDestination {
		ledger, err := OpenOrderLedger(a.config.Agent.LedgerPath)
		if err != nil {
			return err
		}
		a.ledger = ledger
		a.applier = NewConfigApplier(a.config.Account.ID, ledger, a.relay, a.telemetry)
		a.reconciler = NewReconciler(a.terminal, ledger, a.clock, a.config.RetryBackoff(), a.telemetry)
	}
	return nil
}

// Start abre el bridge, restaura la configuración persistida y lanza los loops.
func (a *Agent) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errors.New("agent already closed")
	}
	if a.started {
		return errors.New("agent already started")
	}

	if a.relayClient != nil {
		if err := a.relayClient.WaitForReady(a.ctx, a.config.ConnectTimeout()); err != nil {
			return fmt.Errorf("relay unreachable: %w", err)
		}
	}

	if a.pipe != nil {
		if err := a.pipe.Listen(a.ctx); err != nil {
			return fmt.Errorf("failed to listen on pipe: %w", err)
		}
	}

	if a.applier != nil {
		snaps, err := a.ledger.LoadConfigs()
		if err != nil {
			return fmt.Errorf("load persisted configs: %w", err)
		}
		a.applier.Restore(a.ctx, snaps)
		a.relay.Subscribe(wire.ConfigTopic(a.config.Account.ID))
		a.relay.Subscribe(wire.PositionsTopic(a.config.Account.ID))
	} else {
		a.relay.Subscribe(wire.SyncTopic(a.config.Account.ID))
	}

	if a.relayClient != nil {
		a.relayClient.OnConnect(a.announce)
		a.relayClient.Start(a.ctx)
	} else {
		a.announce()
	}

	a.wg.Add(2)
	go a.heartbeatLoop()
	go a.executorLoop()

	a.started = true
	a.telemetry.Info(a.ctx, "Agent started")
	return nil
}

// announce registra la cuenta; un destino pide además su configuración y las
// posiciones de cada origen conocido. Se repite en cada reconexión con el relay.
func (a *Agent) announce() {
	now := a.clock.Now()
	a.send(wire.TopicRegister, domain.Register{
		AccountID: a.config.Account.ID,
		Role:      a.config.Account.Role,
		Platform:  a.config.Account.Platform,
		Broker:    a.config.Account.Broker,
		Version:   a.config.Telemetry.ServiceVersion,
		Timestamp: now,
	})
	if a.config.Account.Role == domain.RoleDestination {
		a.send(wire.TopicRequestConfig, domain.ConfigRequest{AccountID: a.config.Account.ID, Timestamp: now})
		for _, source := range a.applier.Sources() {
			a.requestSync(source)
		}
	}
}

func (a *Agent) requestSync(source string) {
	a.send(wire.TopicSyncRequest, domain.SyncRequest{
		AccountID:     a.config.Account.ID,
		SourceAccount: source,
		Timestamp:     a.clock.Now(),
	})
}

func (a *Agent) send(topic string, v interface{}) bool {
	frame, err := wire.EncodeFrame(a.codec, topic, v)
	if err != nil {
		a.telemetry.Error(a.ctx, "Failed to encode frame", err, semconv.Echo.Topic.String(topic))
		return false
	}
	if !a.relay.Send(frame) {
		a.telemetry.Warn(a.ctx, "Relay send queue full, frame dropped", semconv.Echo.Topic.String(topic))
		return false
	}
	return true
}

func (a *Agent) heartbeatLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.HeartbeatInterval())
	defer ticker.Stop()

	a.sendHeartbeat()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.sendHeartbeat()
		}
	}
}

func (a *Agent) sendHeartbeat() {
	a.infoMu.RLock()
	info := a.info
	a.infoMu.RUnlock()

	a.send(wire.TopicHeartbeat, domain.Heartbeat{
		AccountID:      a.config.Account.ID,
		Role:           a.config.Account.Role,
		Platform:       a.config.Account.Platform,
		Broker:         a.config.Account.Broker,
		Version:        a.config.Telemetry.ServiceVersion,
		Balance:        info.Balance,
		Equity:         info.Equity,
		OpenPositions:  info.OpenPositions,
		IsTradeAllowed: info.IsTradeAllowed,
		Timestamp:      a.clock.Now(),
	})
}

func (a *Agent) executorLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.TickInterval())
	defer ticker.Stop()

	var trades <-chan domain.TradeEvent
	if src, ok := a.terminal.(TradeSource); ok && a.config.Account.Role == domain.RoleSource {
		trades = src.TradeEvents()
	}

	a.refreshInfo()
	ticks := 0
	for {
		select {
		case <-a.ctx.Done():
			return
		case raw := <-a.relay.Frames():
			a.handleFrame(raw)
		case ev := <-trades:
			a.forwardTrade(ev)
		case <-ticker.C:
			ticks++
			a.tick(ticks)
		}
	}
}

func (a *Agent) tick(n int) {
	a.refreshInfo()
	every := a.config.Agent.ReconcileEveryTicks
	if a.reconciler == nil || every <= 0 || n%every != 0 {
		return
	}
	if err := a.reconciler.Reconcile(a.ctx); err != nil {
		a.telemetry.Warn(a.ctx, "Reconcile failed", semconv.Echo.Reason.String(err.Error()))
	}
}

func (a *Agent) refreshInfo() {
	info, err := a.terminal.AccountInfo(a.ctx)
	if err != nil {
		a.telemetry.Debug(a.ctx, "Account info unavailable", semconv.Echo.ErrorCode.String(string(domain.CodeOf(err))))
		return
	}
	a.infoMu.Lock()
	a.info = info
	a.infoMu.Unlock()
}

// forwardTrade publica un evento del terminal origen. La cuenta emisora es
// siempre la propia.
func (a *Agent) forwardTrade(ev domain.TradeEvent) {
	ev.SourceAccount = a.config.Account.ID
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = a.clock.Now()
	}
	if ev.Kind == domain.EventOpen && ev.SourceEquity <= 0 {
		a.infoMu.RLock()
		ev.SourceEquity = a.info.Equity
		a.infoMu.RUnlock()
	}
	if err := ev.Validate(); err != nil {
		a.telemetry.Warn(a.ctx, "Invalid trade event from terminal",
			semconv.Echo.SourceOrderID.Int64(ev.SourceOrderID),
			semconv.Echo.Reason.String(err.Error()),
		)
		return
	}
	if a.send(wire.TopicTrade, ev) {
		a.telemetry.Debug(a.ctx, "Trade event forwarded",
			semconv.Echo.EventKind.String(string(ev.Kind)),
			semconv.Echo.SourceOrderID.Int64(ev.SourceOrderID),
		)
	}
}

// handleFrame procesa un frame del relay en el executor.
func (a *Agent) handleFrame(raw []byte) {
	frame, err := wire.ParseFrame(raw)
	if err != nil {
		a.telemetry.Warn(a.ctx, "Malformed frame from relay", semconv.Echo.Reason.String(err.Error()))
		return
	}
	if a.applier == nil {
		if wire.IsSyncTopic(frame.Topic) {
			a.answerSync(frame)
		}
		return
	}

	switch {
	case wire.IsConfigTopic(frame.Topic):
		var snap domain.ConfigSnapshot
		if err := wire.DecodePayload(frame.Payload, &snap); err != nil {
			a.telemetry.Warn(a.ctx, "Malformed config snapshot", semconv.Echo.Reason.String(err.Error()))
			return
		}
		known := a.applier.Sources()
		if a.applier.Apply(a.ctx, snap) {
			for _, source := range newSources(known, a.applier.Sources()) {
				a.requestSync(source)
			}
		}
		return
	case wire.IsPositionsTopic(frame.Topic):
		a.syncPositions(frame)
		return
	}

	source, destination, ok := wire.ParseTradeTopic(frame.Topic)
	if !ok || destination != a.config.Account.ID {
		a.telemetry.Debug(a.ctx, "Frame ignored", semconv.Echo.Topic.String(frame.Topic))
		return
	}

	link, ok := a.applier.LinkForSource(source)
	if !ok {
		a.telemetry.Debug(a.ctx, "Trade for unknown link dropped", semconv.Echo.Topic.String(frame.Topic))
		return
	}

	var ev domain.TradeEvent
	if err := wire.DecodePayload(frame.Payload, &ev); err != nil {
		a.telemetry.Warn(a.ctx, "Malformed trade event", semconv.Echo.Reason.String(err.Error()))
		return
	}
	if ev.SourceAccount != source {
		a.telemetry.Warn(a.ctx, "Trade source does not match topic",
			semconv.Echo.Topic.String(frame.Topic),
			semconv.Echo.SourceAccount.String(ev.SourceAccount),
		)
		return
	}

	a.reconciler.Handle(a.ctx, link, ev)
}

// answerSync responde un sync_request con las posiciones del terminal origen.
func (a *Agent) answerSync(frame wire.Frame) {
	var req domain.SyncRequest
	if err := wire.DecodePayload(frame.Payload, &req); err != nil {
		a.telemetry.Warn(a.ctx, "Malformed sync request", semconv.Echo.Reason.String(err.Error()))
		return
	}
	lister, ok := a.terminal.(PositionLister)
	if !ok {
		a.telemetry.Debug(a.ctx, "Terminal cannot list positions, sync request ignored",
			semconv.Echo.DestinationAccount.String(req.AccountID))
		return
	}
	positions, err := lister.Positions(a.ctx)
	if err != nil {
		a.telemetry.Warn(a.ctx, "Failed to list positions",
			semconv.Echo.DestinationAccount.String(req.AccountID),
			semconv.Echo.ErrorCode.String(string(domain.CodeOf(err))),
		)
		return
	}

	a.infoMu.RLock()
	equity := a.info.Equity
	a.infoMu.RUnlock()

	a.send(wire.TopicPositionSnapshot, domain.PositionSnapshot{
		SourceAccount:      a.config.Account.ID,
		DestinationAccount: req.AccountID,
		Positions:          positions,
		SourceEquity:       equity,
		Timestamp:          a.clock.Now(),
	})
}

// syncPositions abre en el destino las posiciones del origen que faltan.
func (a *Agent) syncPositions(frame wire.Frame) {
	var snap domain.PositionSnapshot
	if err := wire.DecodePayload(frame.Payload, &snap); err != nil {
		a.telemetry.Warn(a.ctx, "Malformed position snapshot", semconv.Echo.Reason.String(err.Error()))
		return
	}
	if snap.DestinationAccount != a.config.Account.ID {
		a.telemetry.Debug(a.ctx, "Position snapshot for another destination", semconv.Echo.Topic.String(frame.Topic))
		return
	}
	link, ok := a.applier.LinkForSource(snap.SourceAccount)
	if !ok {
		a.telemetry.Debug(a.ctx, "Position snapshot for unknown link dropped",
			semconv.Echo.SourceAccount.String(snap.SourceAccount))
		return
	}
	a.reconciler.Sync(a.ctx, link, snap)
}

// newSources orígenes de after que no estaban en before.
func newSources(before, after []string) []string {
	seen := make(map[string]struct{}, len(before))
	for _, s := range before {
		seen[s] = struct{}{}
	}
	var out []string
	for _, s := range after {
		if _, ok := seen[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

// Shutdown envía unregister (best-effort) y detiene el Agent. Idempotente.
func (a *Agent) Shutdown() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	started := a.started
	a.mu.Unlock()

	if started {
		a.send(wire.TopicUnregister, domain.Unregister{AccountID: a.config.Account.ID, Timestamp: a.clock.Now()})
		if a.relayClient != nil {
			a.relayClient.Drain(shutdownDrainTimeout)
		}
	}

	a.telemetry.Info(a.ctx, "Agent shutting down")
	a.cancel()
	a.wg.Wait()
	return a.release()
}

func (a *Agent) release() error {
	var errs []error
	if a.relayClient != nil {
		a.cancel()
		if err := a.relayClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("relay client: %w", err))
		}
	}
	if a.pipe != nil {
		if err := a.pipe.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pipe: %w", err))
		}
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("ledger: %w", err))
		}
	}
	if a.ownsTel {
		if err := a.telemetry.Shutdown(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}
