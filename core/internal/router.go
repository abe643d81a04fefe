package internal

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/metricbundle"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"github.com/xKoRx/echo/sdk/utils"
	"github.com/xKoRx/echo/sdk/wire"
)

// Motivos de descarte del router.
const (
	DropInactive = "inactive"
	DropRejected = "rejected"
	DropEncode   = "encode"
)

// Router enruta eventos de trading de una cuenta origen a sus destinos.
//
// Responsabilidades:
//   - Consultar al StatusEngine si cada link candidato está Active
//   - Descartar en silencio los links no activos (sin cola ni replay)
//   - Opcionalmente aplicar Decide en el relay (filterAtRelay)
//   - Publicar una copia por link en trade/<source>/<destination>
//   - Registrar el evento en RecentEvents y métricas
//
// No guarda estado entre llamadas: lee snapshots de StatusEngine y LinkRegistry.
// El orden por link lo garantiza el Hub (un escritor por topic).
type Router struct {
	status *StatusEngine
	links  *LinkRegistry
	hub    *Hub
	events *RecentEvents

	codec         wire.Codec
	filterAtRelay bool

	clock     utils.Clock
	telemetry *telemetry.Client
	metrics   *metricbundle.CopyMetrics
}

// RouterOptions opciones del router.
type RouterOptions struct {
	Codec         wire.Codec
	FilterAtRelay bool
	Clock         utils.Clock
}

// RouteResult resumen de un ruteo.
type RouteResult struct {
	EventID string
	Routed  []string          // link ids publicados
	Dropped map[string]string // link id → motivo
}

// NewRouter crea el router.
func NewRouter(status *StatusEngine, links *LinkRegistry, hub *Hub, events *RecentEvents, opts RouterOptions, tel *telemetry.Client) *Router {
	if opts.Codec == nil {
		opts.Codec = wire.JSONCodec{}
	}
	if opts.Clock == nil {
		opts.Clock = utils.SystemClock{}
	}
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return &Router{
		status:        status,
		links:         links,
		hub:           hub,
		events:        events,
		codec:         opts.Codec,
		filterAtRelay: opts.FilterAtRelay,
		clock:         opts.Clock,
		telemetry:     tel,
		metrics:       tel.Metrics(),
	}
}

// Route publica ev en cada link Active cuyo origen es ev.SourceAccount.
//
// ev no se muta; cada destino recibe una copia derivada.
func (r *Router) Route(ctx context.Context, ev domain.TradeEvent) RouteResult {
	startTime := time.Now()

	if ev.EventID == "" {
		ev.EventID = utils.GenerateUUIDv7()
	}
	if ev.Kind == domain.EventOpen && ev.SourceEquity <= 0 {
		ev.SourceEquity = r.status.Equity(ev.SourceAccount)
	}
	result := RouteResult{EventID: ev.EventID, Dropped: make(map[string]string)}

	ctx = telemetry.WithTradeEvent(ctx, ev.EventID, ev.SourceAccount, ev.SourceOrderID, string(ev.Kind))
	ctx, span := r.telemetry.StartSpan(ctx, "relay.route")
	defer span.End()

	for _, link := range r.links.BySource(ev.SourceAccount) {
		linkAttrs := semconv.LinkAttributes(link.LinkID, link.SourceAccount, link.DestinationAccount)

		if status := r.status.LinkStatus(link); status != domain.LinkActive {
			result.Dropped[link.LinkID] = DropInactive
			r.metrics.RecordDropped(ctx, DropInactive, linkAttrs...)
			r.telemetry.Debug(ctx, "Link not active, event dropped",
				append(linkAttrs, semconv.Echo.LinkStatus.String(string(status)))...)
			continue
		}

		out := ev
		if r.filterAtRelay {
			link.EquityRatio = domain.EquityRatio(r.status.Equity(link.DestinationAccount), ev.SourceEquity)
			decision := domain.Decide(ev, link)
			if !decision.Accepted {
				result.Dropped[link.LinkID] = DropRejected
				r.metrics.RecordDropped(ctx, DropRejected, linkAttrs...)
				r.telemetry.Debug(ctx, "Event rejected by link filters",
					append(linkAttrs, semconv.Echo.Reason.String(string(decision.Reason)))...)
				continue
			}
			out = decision.Event
		}

		if err := r.publish(ctx, link, out); err != nil {
			result.Dropped[link.LinkID] = DropEncode
			r.metrics.RecordDropped(ctx, DropEncode, linkAttrs...)
			r.telemetry.Error(ctx, "Failed to encode trade copy", err, linkAttrs...)
			continue
		}
		result.Routed = append(result.Routed, link.LinkID)
		r.metrics.RecordRouted(ctx, linkAttrs...)
	}

	span.SetAttributes(
		attribute.Int("routed", len(result.Routed)),
		attribute.Int("dropped", len(result.Dropped)),
	)
	r.telemetry.RecordLatency(ctx, "relay.route", float64(time.Since(startTime).Microseconds())/1000.0)
	return result
}

func (r *Router) publish(ctx context.Context, link domain.Link, ev domain.TradeEvent) error {
	topic := wire.TradeTopic(link.SourceAccount, link.DestinationAccount)
	frame, err := wire.EncodeFrame(r.codec, topic, ev)
	if err != nil {
		return err
	}

	delivered := r.hub.Publish(topic, frame)
	r.telemetry.Debug(ctx, "Trade copy published",
		semconv.Echo.Topic.String(topic),
		attribute.Int("subscribers", delivered),
	)

	if r.events != nil {
		r.events.Add(ctx, domain.NewRoutedEvent(topic, link, ev, r.clock.Now()))
	}
	return nil
}
