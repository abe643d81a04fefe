package internal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"github.com/xKoRx/echo/sdk/utils"
)

// DefaultHeartbeatInterval intervalo de heartbeat compartido por relay y agentes.
const DefaultHeartbeatInterval = 30 * time.Second

// StatusEngine dueño exclusivo del estado de vida de las cuentas.
//
// Liveness se calcula al leer a partir del último heartbeat observado con el
// reloj inyectado (monotónico en producción). El estado de un link nunca se
// guarda: LinkStatus lo deriva en cada consulta.
//
//	Unknown → Online   primer heartbeat o registro
//	Online  → Offline  now - last > 2×interval
//	Offline → Online   siguiente heartbeat
//	*       → Removed  Unregister; un Register/heartbeat posterior crea una cuenta nueva
type StatusEngine struct {
	mu       sync.RWMutex
	accounts map[string]*accountState

	clock     utils.Clock
	interval  time.Duration
	telemetry *telemetry.Client
}

type accountState struct {
	account  domain.Account
	lastSeen time.Time
	removed  bool
}

// NewStatusEngine crea el engine. interval <= 0 usa DefaultHeartbeatInterval.
func NewStatusEngine(clock utils.Clock, interval time.Duration, tel *telemetry.Client) *StatusEngine {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return &StatusEngine{
		accounts:  make(map[string]*accountState),
		clock:     clock,
		interval:  interval,
		telemetry: tel,
	}
}

// Interval intervalo de heartbeat configurado.
func (e *StatusEngine) Interval() time.Duration { return e.interval }

// GracePeriod ventana de vida: 2×interval.
func (e *StatusEngine) GracePeriod() time.Duration { return 2 * e.interval }

// Register alta explícita. Sobre una cuenta Removed crea una cuenta nueva.
func (e *StatusEngine) Register(ctx context.Context, reg domain.Register) domain.Account {
	now := e.clock.Now()

	e.mu.Lock()
	st, created := e.freshLocked(reg.AccountID)
	st.account.Role = reg.Role
	st.account.Platform = reg.Platform
	st.account.Broker = reg.Broker
	st.account.Version = reg.Version
	e.touchLocked(st, now)
	out := e.viewLocked(st, now)
	e.mu.Unlock()

	e.telemetry.Info(ctx, "Account registered",
		semconv.Echo.AccountID.String(reg.AccountID),
		semconv.Echo.Liveness.String(string(out.Liveness)),
		semconv.Echo.Status.String(createdLabel(created)),
	)
	return out
}

// Heartbeat actualiza el último latido. Una cuenta desconocida o Removed queda
// registrada por el propio heartbeat; created lo indica.
func (e *StatusEngine) Heartbeat(ctx context.Context, hb domain.Heartbeat) (account domain.Account, created bool) {
	now := e.clock.Now()

	e.mu.Lock()
	st, created := e.freshLocked(hb.AccountID)
	if hb.Role.Valid() {
		st.account.Role = hb.Role
	}
	if hb.Platform != "" {
		st.account.Platform = hb.Platform
	}
	if hb.Broker != "" {
		st.account.Broker = hb.Broker
	}
	if hb.Version != "" {
		st.account.Version = hb.Version
	}
	st.account.IsTradeAllowed = hb.IsTradeAllowed
	st.account.OpenPositionCount = hb.OpenPositions
	st.account.Balance = hb.Balance
	st.account.Equity = hb.Equity
	e.touchLocked(st, now)
	account = e.viewLocked(st, now)
	e.mu.Unlock()

	if created {
		e.telemetry.Info(ctx, "Account registered by heartbeat", semconv.Echo.AccountID.String(hb.AccountID))
	}
	return account, created
}

// Unregister marca la cuenta como Removed. Retorna false si no existía.
func (e *StatusEngine) Unregister(ctx context.Context, accountID string) bool {
	e.mu.Lock()
	st, ok := e.accounts[accountID]
	if ok {
		st.removed = true
	}
	e.mu.Unlock()

	if ok {
		e.telemetry.Info(ctx, "Account unregistered", semconv.Echo.AccountID.String(accountID))
	} else {
		e.telemetry.Debug(ctx, "Unregister for unknown account", semconv.Echo.AccountID.String(accountID))
	}
	return ok
}

// Liveness estado de vida actual de una cuenta.
func (e *StatusEngine) Liveness(accountID string) domain.Liveness {
	now := e.clock.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	st, ok := e.accounts[accountID]
	if !ok {
		return domain.LivenessUnknown
	}
	return e.livenessLocked(st, now)
}

// IsLive indica si la cuenta está Online.
func (e *StatusEngine) IsLive(accountID string) bool {
	return e.Liveness(accountID) == domain.LivenessOnline
}

// LinkStatus estado derivado del link: enabled ∧ live(source) ∧ live(destination).
func (e *StatusEngine) LinkStatus(link domain.Link) domain.LinkStatus {
	if !link.Enabled {
		return domain.LinkDisabled
	}
	now := e.clock.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()
	return domain.DeriveLinkStatus(true, e.isLiveLocked(link.SourceAccount, now), e.isLiveLocked(link.DestinationAccount, now))
}

// Account copia de una cuenta con su liveness calculada.
func (e *StatusEngine) Account(accountID string) (domain.Account, bool) {
	now := e.clock.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	st, ok := e.accounts[accountID]
	if !ok {
		return domain.Account{}, false
	}
	return e.viewLocked(st, now), true
}

// Accounts snapshot de todas las cuentas ordenado por id.
func (e *StatusEngine) Accounts() []domain.Account {
	now := e.clock.Now()

	e.mu.RLock()
	out := make([]domain.Account, 0, len(e.accounts))
	for _, st := range e.accounts {
		out = append(out, e.viewLocked(st, now))
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}

// Equity última equity reportada por una cuenta Online; 0 en cualquier otro caso.
func (e *StatusEngine) Equity(accountID string) float64 {
	now := e.clock.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	st, ok := e.accounts[accountID]
	if !ok || e.livenessLocked(st, now) != domain.LivenessOnline {
		return 0
	}
	return st.account.Equity
}

func (e *StatusEngine) freshLocked(accountID string) (*accountState, bool) {
	st, ok := e.accounts[accountID]
	if ok && !st.removed {
		return st, false
	}
	st = &accountState{account: domain.Account{AccountID: accountID}}
	e.accounts[accountID] = st
	return st, true
}

func (e *StatusEngine) touchLocked(st *accountState, now time.Time) {
	st.lastSeen = now
	st.account.LastHeartbeat = now.Round(0)
}

func (e *StatusEngine) isLiveLocked(accountID string, now time.Time) bool {
	st, ok := e.accounts[accountID]
	return ok && e.livenessLocked(st, now) == domain.LivenessOnline
}

func (e *StatusEngine) livenessLocked(st *accountState, now time.Time) domain.Liveness {
	switch {
	case st.removed:
		return domain.LivenessRemoved
	case st.lastSeen.IsZero():
		return domain.LivenessUnknown
	case now.Sub(st.lastSeen) > e.GracePeriod():
		return domain.LivenessOffline
	default:
		return domain.LivenessOnline
	}
}

func (e *StatusEngine) viewLocked(st *accountState, now time.Time) domain.Account {
	out := st.account
	out.Liveness = e.livenessLocked(st, now)
	return out
}

func createdLabel(created bool) string {
	if created {
		return "created"
	}
	return "refreshed"
}
