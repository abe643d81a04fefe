package internal

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"github.com/xKoRx/echo/sdk/wire"
)

// PositionSync encamina la sincronización de posiciones entre origen y destino.
//
//	destino --sync_request-->      relay --sync/<source>-->         origen
//	origen  --position_snapshot--> relay --positions/<destination>--> destino
//
// Sólo viaja por links Active, igual que las copias de trading.
type PositionSync struct {
	status *StatusEngine
	links  *LinkRegistry
	hub    *Hub
	codec  wire.Codec

	telemetry *telemetry.Client
}

// NewPositionSync crea el componente. codec nil usa JSON.
func NewPositionSync(status *StatusEngine, links *LinkRegistry, hub *Hub, codec wire.Codec, tel *telemetry.Client) *PositionSync {
	if codec == nil {
		codec = wire.JSONCodec{}
	}
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return &PositionSync{status: status, links: links, hub: hub, codec: codec, telemetry: tel}
}

// Request reenvía req al origen si existe un link Active origen → destino.
func (p *PositionSync) Request(ctx context.Context, req domain.SyncRequest) bool {
	attrs := []attribute.KeyValue{
		semconv.Echo.SourceAccount.String(req.SourceAccount),
		semconv.Echo.DestinationAccount.String(req.AccountID),
	}
	if _, ok := p.activeLink(req.SourceAccount, req.AccountID); !ok {
		p.telemetry.Debug(ctx, "Sync request without active link dropped", attrs...)
		return false
	}

	delivered, err := p.publish(wire.SyncTopic(req.SourceAccount), req)
	if err != nil {
		p.telemetry.Error(ctx, "Failed to encode sync request", err, attrs...)
		return false
	}
	p.telemetry.Info(ctx, "Sync request forwarded", append(attrs, attribute.Int("subscribers", delivered))...)
	return true
}

// Distribute entrega snap a su destino, o a todos los destinos Active del
// origen si no trae uno. Retorna a cuántos destinos se publicó.
func (p *PositionSync) Distribute(ctx context.Context, snap domain.PositionSnapshot) int {
	var targets []domain.Link
	if snap.DestinationAccount != "" {
		if link, ok := p.activeLink(snap.SourceAccount, snap.DestinationAccount); ok {
			targets = append(targets, link)
		}
	} else {
		for _, link := range p.links.BySource(snap.SourceAccount) {
			if p.status.LinkStatus(link) == domain.LinkActive {
				targets = append(targets, link)
			}
		}
	}

	published := 0
	for _, link := range targets {
		out := snap
		out.DestinationAccount = link.DestinationAccount
		if _, err := p.publish(wire.PositionsTopic(link.DestinationAccount), out); err != nil {
			p.telemetry.Error(ctx, "Failed to encode position snapshot", err,
				semconv.LinkAttributes(link.LinkID, link.SourceAccount, link.DestinationAccount)...)
			continue
		}
		published++
	}

	p.telemetry.Info(ctx, "Position snapshot distributed",
		semconv.Echo.SourceAccount.String(snap.SourceAccount),
		attribute.Int("positions", len(snap.Positions)),
		attribute.Int("destinations", published),
	)
	return published
}

func (p *PositionSync) activeLink(source, destination string) (domain.Link, bool) {
	for _, link := range p.links.BySource(source) {
		if link.DestinationAccount == destination && p.status.LinkStatus(link) == domain.LinkActive {
			return link, true
		}
	}
	return domain.Link{}, false
}

func (p *PositionSync) publish(topic string, v interface{}) (int, error) {
	frame, err := wire.EncodeFrame(p.codec, topic, v)
	if err != nil {
		return 0, err
	}
	return p.hub.Publish(topic, frame), nil
}
