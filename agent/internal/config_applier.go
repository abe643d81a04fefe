package internal

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"github.com/xKoRx/echo/sdk/wire"
)

// Subscriptions suscripciones del agent en el relay.
type Subscriptions interface {
	Subscribe(topic string)
	Unsubscribe(topic string)
}

// configStore persistencia de snapshots aplicados.
type configStore interface {
	SaveConfig(snap domain.ConfigSnapshot) error
}

// ConfigApplier aplica snapshots de configuración de los links de un destino.
//
// Lo usa sólo el executor del agent: aplicar un snapshot y cambiar las
// suscripciones ocurre entre dos eventos de trading, nunca durante uno.
type ConfigApplier struct {
	account   string
	applied   map[string]domain.ConfigSnapshot // link_id → último snapshot (tombstones incluidos)
	bySource  map[string]string                // source_account → link_id vigente
	store     configStore
	subs      Subscriptions
	telemetry *telemetry.Client
}

// NewConfigApplier crea el applier del destino account. store puede ser nil.
func NewConfigApplier(account string, store configStore, subs Subscriptions, tel *telemetry.Client) *ConfigApplier {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return &ConfigApplier{
		account:   account,
		applied:   make(map[string]domain.ConfigSnapshot),
		bySource:  make(map[string]string),
		store:     store,
		subs:      subs,
		telemetry: tel,
	}
}

// Restore recarga snapshots persistidos sin volver a guardarlos.
func (a *ConfigApplier) Restore(ctx context.Context, snaps []domain.ConfigSnapshot) {
	for _, snap := range snaps {
		a.apply(ctx, snap, false)
	}
}

// Apply aplica snap si su versión supera la vigente del link.
//
// Versiones iguales o menores se ignoran sin log: son consecuencia normal de
// la entrega best-effort. Retorna true si el snapshot quedó aplicado.
func (a *ConfigApplier) Apply(ctx context.Context, snap domain.ConfigSnapshot) bool {
	return a.apply(ctx, snap, true)
}

func (a *ConfigApplier) apply(ctx context.Context, snap domain.ConfigSnapshot, persist bool) bool {
	link := snap.Link
	if link.LinkID == "" || link.DestinationAccount != a.account {
		a.telemetry.Warn(ctx, "Config snapshot for another destination",
			semconv.Echo.LinkID.String(link.LinkID),
			semconv.Echo.DestinationAccount.String(link.DestinationAccount),
		)
		return false
	}

	current, known := a.applied[link.LinkID]
	if known && snap.Version() <= current.Version() {
		return false
	}

	oldSource := ""
	if known && !current.Deleted {
		oldSource = current.Link.SourceAccount
	}
	newSource := ""
	if !snap.Deleted {
		newSource = link.SourceAccount
	}

	a.applied[link.LinkID] = snap

	if oldSource != newSource {
		if oldSource != "" {
			a.release(oldSource, link.LinkID)
		}
		if newSource != "" {
			a.subs.Subscribe(wire.TradeTopic(newSource, a.account))
		}
	}
	if newSource != "" {
		a.bySource[newSource] = link.LinkID
	}

	if persist && a.store != nil {
		if err := a.store.SaveConfig(snap); err != nil {
			a.telemetry.Error(ctx, "Failed to persist config snapshot", err, semconv.Echo.LinkID.String(link.LinkID))
		}
	}

	a.telemetry.Info(ctx, "Config applied",
		semconv.Echo.LinkID.String(link.LinkID),
		semconv.Echo.SourceAccount.String(link.SourceAccount),
		semconv.Echo.ConfigVersion.Int64(snap.Version()),
		attribute.Bool("deleted", snap.Deleted),
		attribute.Bool("enabled", link.Enabled),
	)
	return true
}

// release suelta el origen que linkID dejó de usar.
//
// Si otro link vigente sigue copiando desde source, hereda el índice y la
// suscripción se mantiene.
func (a *ConfigApplier) release(source, linkID string) {
	if owner, ok := a.bySource[source]; ok && owner != linkID {
		return
	}
	for id, snap := range a.applied {
		if id != linkID && !snap.Deleted && snap.Link.SourceAccount == source {
			a.bySource[source] = id
			return
		}
	}
	delete(a.bySource, source)
	a.subs.Unsubscribe(wire.TradeTopic(source, a.account))
}

// LinkForSource link vigente cuyo origen es source.
func (a *ConfigApplier) LinkForSource(source string) (domain.Link, bool) {
	id, ok := a.bySource[source]
	if !ok {
		return domain.Link{}, false
	}
	return a.applied[id].Link, true
}

// Version versión aplicada de un link (0 si nunca se aplicó).
func (a *ConfigApplier) Version(linkID string) int64 {
	return a.applied[linkID].Version()
}

// Topics topics de trading a los que el destino debe estar suscrito.
func (a *ConfigApplier) Topics() []string {
	out := make([]string, 0, len(a.bySource))
	for source := range a.bySource {
		out = append(out, wire.TradeTopic(source, a.account))
	}
	return out
}

// Sources orígenes con un link vigente, ordenados.
func (a *ConfigApplier) Sources() []string {
	out := make([]string, 0, len(a.bySource))
	for source := range a.bySource {
		out = append(out, source)
	}
	sort.Strings(out)
	return out
}
