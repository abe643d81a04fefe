package internal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xKoRx/echo/core/internal/repository"
	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/metricbundle"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"github.com/xKoRx/echo/sdk/utils"
	"github.com/xKoRx/echo/sdk/wire"
)

// ErrDestinationChange destination_account es inmutable; se borra y se recrea el link.
var ErrDestinationChange = errors.New("destination_account cannot change")

// Distributor aplica mutaciones de links y publica snapshots al destino.
//
// Orden por mutación: persistir (durable) → actualizar LinkRegistry → publicar
// exactamente un snapshot en config/<destination>. Un fallo al publicar sólo se
// loguea; el destino recupera con request_config.
type Distributor struct {
	mu sync.Mutex

	store repository.LinkStore
	links *LinkRegistry
	hub   *Hub
	codec wire.Codec
	clock utils.Clock

	telemetry *telemetry.Client
	metrics   *metricbundle.CopyMetrics
}

// NewDistributor crea el distributor.
func NewDistributor(store repository.LinkStore, links *LinkRegistry, hub *Hub, codec wire.Codec, clock utils.Clock, tel *telemetry.Client) *Distributor {
	if codec == nil {
		codec = wire.JSONCodec{}
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return &Distributor{
		store:     store,
		links:     links,
		hub:       hub,
		codec:     codec,
		clock:     clock,
		telemetry: tel,
		metrics:   tel.Metrics(),
	}
}

// Load carga el registry desde el store (arranque).
func (d *Distributor) Load(ctx context.Context) error {
	links, err := d.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load links: %w", err)
	}
	d.links.Load(links)
	d.telemetry.Info(ctx, "Links loaded", attribute.Int("count", len(links)))
	return nil
}

// Create persiste un link nuevo y publica su primer snapshot.
func (d *Distributor) Create(ctx context.Context, link domain.Link) (domain.Link, error) {
	link.ApplyDefaults()
	if err := link.Validate(); err != nil {
		return domain.Link{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	saved, err := d.store.Create(ctx, link)
	if err != nil {
		return domain.Link{}, err
	}
	d.commit(ctx, saved, "created")
	return saved, nil
}

// Update reemplaza la configuración de un link.
//
// Un cambio de source_account lo resuelve el destino resuscribiéndose al
// aplicar el snapshot.
func (d *Distributor) Update(ctx context.Context, link domain.Link) (domain.Link, error) {
	if link.LinkID == "" {
		return domain.Link{}, domain.NewValidationError("link_id", link.LinkID, "link_id is required")
	}
	link.ApplyDefaults()
	if err := link.Validate(); err != nil {
		return domain.Link{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	current, err := d.store.Get(ctx, link.LinkID)
	if err != nil {
		return domain.Link{}, err
	}
	if current.DestinationAccount != link.DestinationAccount {
		return domain.Link{}, fmt.Errorf("%w: %s → %s", ErrDestinationChange, current.DestinationAccount, link.DestinationAccount)
	}

	saved, err := d.store.Update(ctx, link)
	if err != nil {
		return domain.Link{}, err
	}
	d.commit(ctx, saved, "updated")
	return saved, nil
}

// SetEnabled cambia la intención del operador.
func (d *Distributor) SetEnabled(ctx context.Context, linkID string, enabled bool) (domain.Link, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	saved, err := d.store.SetEnabled(ctx, linkID, enabled)
	if err != nil {
		return domain.Link{}, err
	}
	action := "disabled"
	if enabled {
		action = "enabled"
	}
	d.commit(ctx, saved, action)
	return saved, nil
}

// Delete elimina el link y publica un tombstone con versión nueva.
func (d *Distributor) Delete(ctx context.Context, linkID string) (domain.Link, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tombstone, err := d.store.Delete(ctx, linkID)
	if err != nil {
		return domain.Link{}, err
	}
	d.links.Remove(linkID)
	d.publish(ctx, tombstone, true)

	d.telemetry.Info(ctx, "Link deleted",
		append(semconv.LinkAttributes(tombstone.LinkID, tombstone.SourceAccount, tombstone.DestinationAccount),
			semconv.Echo.ConfigVersion.Int64(tombstone.ConfigVersion))...)
	return tombstone, nil
}

// PublishCurrent republica los snapshots vigentes de un destino. Retorna cuántos.
func (d *Distributor) PublishCurrent(ctx context.Context, destination string) int {
	links := d.links.ByDestination(destination)
	for _, link := range links {
		d.publish(ctx, link, false)
	}
	d.telemetry.Debug(ctx, "Current config republished",
		semconv.Echo.DestinationAccount.String(destination),
		attribute.Int("links", len(links)),
	)
	return len(links)
}

func (d *Distributor) commit(ctx context.Context, saved domain.Link, action string) {
	d.links.Put(saved)
	d.publish(ctx, saved, false)

	d.telemetry.Info(ctx, "Link "+action,
		append(semconv.LinkAttributes(saved.LinkID, saved.SourceAccount, saved.DestinationAccount),
			semconv.Echo.ConfigVersion.Int64(saved.ConfigVersion),
			attribute.Bool("enabled", saved.Enabled),
		)...)
}

func (d *Distributor) publish(ctx context.Context, link domain.Link, deleted bool) {
	link.EquityRatio = 0
	topic := wire.ConfigTopic(link.DestinationAccount)
	snapshot := domain.ConfigSnapshot{Link: link, Deleted: deleted, PublishedAt: d.clock.Now()}

	frame, err := wire.EncodeFrame(d.codec, topic, snapshot)
	if err != nil {
		d.telemetry.Error(ctx, "Failed to encode config snapshot", err,
			semconv.Echo.LinkID.String(link.LinkID),
			semconv.Echo.ConfigVersion.Int64(link.ConfigVersion),
		)
		return
	}

	delivered := d.hub.Publish(topic, frame)
	d.metrics.RecordConfigPublished(ctx, semconv.Echo.DestinationAccount.String(link.DestinationAccount))
	d.telemetry.Debug(ctx, "Config snapshot published",
		semconv.Echo.Topic.String(topic),
		semconv.Echo.ConfigVersion.Int64(link.ConfigVersion),
		attribute.Bool("deleted", deleted),
		attribute.Int("subscribers", delivered),
	)
}
