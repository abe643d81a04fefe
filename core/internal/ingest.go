package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/metricbundle"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"github.com/xKoRx/echo/sdk/wire"
)

// DropMalformed motivo de descarte de frames inválidos.
const DropMalformed = "malformed"

// ErrUnknownTopic topic de entrada no soportado.
var ErrUnknownTopic = errors.New("unknown inbound topic")

// Ingest despacha frames entrantes de los endpoints.
//
// Un frame malformado se descarta y se loguea (Warn con rate limit); nunca
// corta el stream de entrada.
type Ingest struct {
	status *StatusEngine
	router *Router
	dist   *Distributor
	psync  *PositionSync

	warnLimiter *rate.Limiter
	telemetry   *telemetry.Client
	metrics     *metricbundle.CopyMetrics
}

// NewIngest crea el dispatcher. Los warnings de malformados se limitan a 1/s con ráfaga de 5.
func NewIngest(status *StatusEngine, router *Router, dist *Distributor, psync *PositionSync, tel *telemetry.Client) *Ingest {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return &Ingest{
		status:      status,
		router:      router,
		dist:        dist,
		psync:       psync,
		warnLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
		telemetry:   tel,
		metrics:     tel.Metrics(),
	}
}

// Handle procesa un frame crudo "topic payload".
func (i *Ingest) Handle(ctx context.Context, raw []byte) error {
	frame, err := wire.ParseFrame(raw)
	if err != nil {
		return i.malformed(ctx, "", err)
	}

	switch frame.Topic {
	case wire.TopicRegister:
		var reg domain.Register
		if err := wire.DecodePayload(frame.Payload, &reg); err != nil {
			return i.malformed(ctx, frame.Topic, err)
		}
		account := i.status.Register(ctx, reg)
		if account.Role == domain.RoleDestination {
			i.dist.PublishCurrent(ctx, account.AccountID)
		}

	case wire.TopicHeartbeat:
		var hb domain.Heartbeat
		if err := wire.DecodePayload(frame.Payload, &hb); err != nil {
			return i.malformed(ctx, frame.Topic, err)
		}
		account, created := i.status.Heartbeat(ctx, hb)
		i.metrics.RecordHeartbeat(ctx, semconv.Echo.AccountID.String(hb.AccountID))
		if created && account.Role == domain.RoleDestination {
			i.dist.PublishCurrent(ctx, account.AccountID)
		}

	case wire.TopicUnregister:
		var unreg domain.Unregister
		if err := wire.DecodePayload(frame.Payload, &unreg); err != nil {
			return i.malformed(ctx, frame.Topic, err)
		}
		i.status.Unregister(ctx, unreg.AccountID)

	case wire.TopicTrade:
		var ev domain.TradeEvent
		if err := wire.DecodePayload(frame.Payload, &ev); err != nil {
			return i.malformed(ctx, frame.Topic, err)
		}
		i.router.Route(ctx, ev)

	case wire.TopicRequestConfig:
		var req domain.ConfigRequest
		if err := wire.DecodePayload(frame.Payload, &req); err != nil {
			return i.malformed(ctx, frame.Topic, err)
		}
		i.dist.PublishCurrent(ctx, req.AccountID)

	case wire.TopicSyncRequest:
		var req domain.SyncRequest
		if err := wire.DecodePayload(frame.Payload, &req); err != nil {
			return i.malformed(ctx, frame.Topic, err)
		}
		i.psync.Request(ctx, req)

	case wire.TopicPositionSnapshot:
		var snap domain.PositionSnapshot
		if err := wire.DecodePayload(frame.Payload, &snap); err != nil {
			return i.malformed(ctx, frame.Topic, err)
		}
		i.psync.Distribute(ctx, snap)

	default:
		return i.malformed(ctx, frame.Topic, fmt.Errorf("%w: %s", ErrUnknownTopic, frame.Topic))
	}
	return nil
}

func (i *Ingest) malformed(ctx context.Context, topic string, err error) error {
	i.metrics.RecordDropped(ctx, DropMalformed, semconv.Echo.Topic.String(topic))
	if i.warnLimiter.Allow() {
		i.telemetry.Warn(ctx, "Malformed message dropped",
			semconv.Echo.Topic.String(topic),
			semconv.Echo.Reason.String(err.Error()),
		)
	}
	return err
}
