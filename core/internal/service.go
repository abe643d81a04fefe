package internal

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/xKoRx/echo/core/internal/repository"
	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/rpc"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"github.com/xKoRx/echo/sdk/utils"
	"github.com/xKoRx/echo/sdk/wire"
)

// RelayService implementa rpc.RelayServer sobre los componentes del relay.
type RelayService struct {
	rpc.UnimplementedRelayServer

	ingest *Ingest
	hub    *Hub
	status *StatusEngine
	links  *LinkRegistry
	dist   *Distributor
	events *RecentEvents
	clock  utils.Clock

	telemetry *telemetry.Client
}

// NewRelayService crea el servicio.
func NewRelayService(ingest *Ingest, hub *Hub, status *StatusEngine, links *LinkRegistry, dist *Distributor, events *RecentEvents, clock utils.Clock, tel *telemetry.Client) *RelayService {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return &RelayService{
		ingest:    ingest,
		hub:       hub,
		status:    status,
		links:     links,
		dist:      dist,
		events:    events,
		clock:     clock,
		telemetry: tel,
	}
}

// Ingest consume frames de un endpoint hasta EOF. Un frame malformado no corta el stream.
func (s *RelayService) Ingest(stream rpc.Relay_IngestServer) error {
	ctx := stream.Context()
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return stream.SendAndClose(&emptypb.Empty{})
		}
		if err != nil {
			if status.Code(err) != codes.Canceled {
				s.telemetry.Debug(ctx, "Ingest stream closed", semconv.Echo.Reason.String(err.Error()))
			}
			return err
		}
		_ = s.ingest.Handle(ctx, msg.GetValue())
	}
}

// Subscribe recibe frames de control y envía los frames publicados en los topics suscriptos.
func (s *RelayService) Subscribe(stream rpc.Relay_SubscribeServer) error {
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	sub := s.hub.NewSubscriber()
	defer s.hub.Remove(sub)

	ctx = telemetry.AppendEventAttrs(ctx, attribute.String("subscriber_id", sub.ID()))
	s.telemetry.Debug(ctx, "Subscriber connected")

	recvErr := make(chan error, 1)
	go func() {
		defer cancel()
		for {
			msg, err := stream.Recv()
			if err != nil {
				recvErr <- err
				return
			}
			s.control(ctx, sub, msg.GetValue())
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.telemetry.Debug(ctx, "Subscriber disconnected")
			select {
			case err := <-recvErr:
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			default:
				return ctx.Err()
			}
		case frame := <-sub.C():
			if err := stream.Send(&wrapperspb.BytesValue{Value: frame}); err != nil {
				return err
			}
		}
	}
}

func (s *RelayService) control(ctx context.Context, sub *Subscriber, raw []byte) {
	frame, err := wire.ParseFrame(raw)
	topic := ""
	if err == nil {
		topic = strings.TrimSpace(string(frame.Payload))
	}
	if err != nil || !subscribableTopic(topic) {
		s.telemetry.Warn(ctx, "Invalid subscribe control frame", semconv.Echo.Topic.String(topic))
		return
	}

	switch frame.Topic {
	case wire.ControlSubscribe:
		s.hub.Subscribe(sub, topic)
	case wire.ControlUnsubscribe:
		s.hub.Unsubscribe(sub, topic)
	default:
		s.telemetry.Warn(ctx, "Unknown subscribe control op", semconv.Echo.Reason.String(frame.Topic))
		return
	}
	s.telemetry.Debug(ctx, "Subscription changed",
		semconv.Echo.Topic.String(topic),
		semconv.Echo.Reason.String(frame.Topic),
	)
}

func subscribableTopic(topic string) bool {
	if !wire.ValidTopic(topic) {
		return false
	}
	if _, _, ok := wire.ParseTradeTopic(topic); ok {
		return true
	}
	return wire.IsConfigTopic(topic) || wire.IsSyncTopic(topic) || wire.IsPositionsTopic(topic)
}

// Snapshot cuentas y links con su estado derivado.
func (s *RelayService) Snapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	links := s.links.All()
	views := make([]rpc.LinkView, 0, len(links))
	for _, l := range links {
		views = append(views, rpc.LinkView{Link: l, Status: s.status.LinkStatus(l)})
	}

	out, err := rpc.ToStruct(rpc.Snapshot{
		Accounts:            s.status.Accounts(),
		Links:               views,
		HeartbeatIntervalMs: s.status.Interval().Milliseconds(),
		GeneratedAt:         s.clock.Now(),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// CreateLink crea un link y publica su snapshot.
func (s *RelayService) CreateLink(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var link domain.Link
	if err := rpc.FromStruct(in, &link); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	saved, err := s.dist.Create(ctx, link)
	return linkReply(saved, err)
}

// UpdateLink reemplaza la configuración de un link.
func (s *RelayService) UpdateLink(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var link domain.Link
	if err := rpc.FromStruct(in, &link); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	saved, err := s.dist.Update(ctx, link)
	return linkReply(saved, err)
}

// SetLinkEnabled habilita o deshabilita un link.
func (s *RelayService) SetLinkEnabled(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.SetLinkEnabledRequest
	if err := rpc.FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	saved, err := s.dist.SetEnabled(ctx, req.LinkID, req.Enabled)
	return linkReply(saved, err)
}

// DeleteLink elimina un link y publica el tombstone.
func (s *RelayService) DeleteLink(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	var req rpc.DeleteLinkRequest
	if err := rpc.FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if _, err := s.dist.Delete(ctx, req.LinkID); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// RecentEvents envía los últimos eventos ruteados y, con follow, los nuevos.
func (s *RelayService) RecentEvents(in *structpb.Struct, stream rpc.Relay_RecentEventsServer) error {
	var req rpc.RecentEventsRequest
	if err := rpc.FromStruct(in, &req); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	var (
		follow <-chan domain.RoutedEvent
		stop   = func() {}
	)
	if req.Follow {
		follow, stop = s.events.Follow(64)
	}
	defer stop()

	for _, ev := range s.events.List(req.Limit) {
		if err := sendRouted(stream, ev); err != nil {
			return err
		}
	}
	if !req.Follow {
		return nil
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-follow:
			if err := sendRouted(stream, ev); err != nil {
				return err
			}
		}
	}
}

func sendRouted(stream rpc.Relay_RecentEventsServer, ev domain.RoutedEvent) error {
	msg, err := rpc.ToStruct(ev)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return stream.Send(msg)
}

func linkReply(link domain.Link, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := rpc.ToStruct(link)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus traduce errores de dominio y repositorio a códigos gRPC.
func toStatus(err error) error {
	switch {
	case domain.IsValidationError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, repository.ErrLinkNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, repository.ErrLinkExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrDestinationChange):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
