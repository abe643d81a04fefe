package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName nombre completo del servicio.
const ServiceName = "echo.relay.v1.Relay"

const (
	Relay_Ingest_FullMethodName         = "/" + ServiceName + "/Ingest"
	Relay_Subscribe_FullMethodName      = "/" + ServiceName + "/Subscribe"
	Relay_Snapshot_FullMethodName       = "/" + ServiceName + "/Snapshot"
	Relay_CreateLink_FullMethodName     = "/" + ServiceName + "/CreateLink"
	Relay_UpdateLink_FullMethodName     = "/" + ServiceName + "/UpdateLink"
	Relay_SetLinkEnabled_FullMethodName = "/" + ServiceName + "/SetLinkEnabled"
	Relay_DeleteLink_FullMethodName     = "/" + ServiceName + "/DeleteLink"
	Relay_RecentEvents_FullMethodName   = "/" + ServiceName + "/RecentEvents"
)

type (
	Relay_IngestServer       = grpc.ClientStreamingServer[wrapperspb.BytesValue, emptypb.Empty]
	Relay_SubscribeServer    = grpc.BidiStreamingServer[wrapperspb.BytesValue, wrapperspb.BytesValue]
	Relay_RecentEventsServer = grpc.ServerStreamingServer[structpb.Struct]

	Relay_IngestClient       = grpc.ClientStreamingClient[wrapperspb.BytesValue, emptypb.Empty]
	Relay_SubscribeClient    = grpc.BidiStreamingClient[wrapperspb.BytesValue, wrapperspb.BytesValue]
	Relay_RecentEventsClient = grpc.ServerStreamingClient[structpb.Struct]
)

// RelayServer lado servidor del servicio.
type RelayServer interface {
	Ingest(Relay_IngestServer) error
	Subscribe(Relay_SubscribeServer) error
	Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	CreateLink(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateLink(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetLinkEnabled(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteLink(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	RecentEvents(*structpb.Struct, Relay_RecentEventsServer) error
}

// UnimplementedRelayServer retorna Unimplemented en todos los métodos.
type UnimplementedRelayServer struct{}

func (UnimplementedRelayServer) Ingest(Relay_IngestServer) error {
	return status.Error(codes.Unimplemented, "method Ingest not implemented")
}
func (UnimplementedRelayServer) Subscribe(Relay_SubscribeServer) error {
	return status.Error(codes.Unimplemented, "method Subscribe not implemented")
}
func (UnimplementedRelayServer) Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Snapshot not implemented")
}
func (UnimplementedRelayServer) CreateLink(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateLink not implemented")
}
func (UnimplementedRelayServer) UpdateLink(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateLink not implemented")
}
func (UnimplementedRelayServer) SetLinkEnabled(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method SetLinkEnabled not implemented")
}
func (UnimplementedRelayServer) DeleteLink(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteLink not implemented")
}
func (UnimplementedRelayServer) RecentEvents(*structpb.Struct, Relay_RecentEventsServer) error {
	return status.Error(codes.Unimplemented, "method RecentEvents not implemented")
}

// RegisterRelayServer registra la implementación en s.
func RegisterRelayServer(s grpc.ServiceRegistrar, srv RelayServer) {
	s.RegisterService(&Relay_ServiceDesc, srv)
}

func _Relay_Ingest_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(RelayServer).Ingest(&grpc.GenericServerStream[wrapperspb.BytesValue, emptypb.Empty]{ServerStream: stream})
}

func _Relay_Subscribe_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(RelayServer).Subscribe(&grpc.GenericServerStream[wrapperspb.BytesValue, wrapperspb.BytesValue]{ServerStream: stream})
}

func _Relay_RecentEvents_Handler(srv any, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(RelayServer).RecentEvents(m, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// unaryHandler arma el handler unary estándar para un método.
func unaryHandler[Req any, Res any](fullMethod string, call func(RelayServer, context.Context, *Req) (*Res, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RelayServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RelayServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Relay_ServiceDesc descriptor del servicio.
var Relay_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RelayServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Snapshot",
			Handler:    unaryHandler(Relay_Snapshot_FullMethodName, RelayServer.Snapshot),
		},
		{
			MethodName: "CreateLink",
			Handler:    unaryHandler(Relay_CreateLink_FullMethodName, RelayServer.CreateLink),
		},
		{
			MethodName: "UpdateLink",
			Handler:    unaryHandler(Relay_UpdateLink_FullMethodName, RelayServer.UpdateLink),
		},
		{
			MethodName: "SetLinkEnabled",
			Handler:    unaryHandler(Relay_SetLinkEnabled_FullMethodName, RelayServer.SetLinkEnabled),
		},
		{
			MethodName: "DeleteLink",
			Handler:    unaryHandler(Relay_DeleteLink_FullMethodName, RelayServer.DeleteLink),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Ingest",
			Handler:       _Relay_Ingest_Handler,
			ClientStreams: true,
		},
		{
			StreamName:    "Subscribe",
			Handler:       _Relay_Subscribe_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
		{
			StreamName:    "RecentEvents",
			Handler:       _Relay_RecentEvents_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "echo/relay/v1/relay.proto",
}

// RelayClient stub de cliente.
type RelayClient interface {
	Ingest(ctx context.Context, opts ...grpc.CallOption) (Relay_IngestClient, error)
	Subscribe(ctx context.Context, opts ...grpc.CallOption) (Relay_SubscribeClient, error)
	Snapshot(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	CreateLink(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	UpdateLink(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SetLinkEnabled(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	DeleteLink(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	RecentEvents(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (Relay_RecentEventsClient, error)
}

type relayClient struct {
	cc grpc.ClientConnInterface
}

// NewRelayClient crea el stub sobre una conexión.
func NewRelayClient(cc grpc.ClientConnInterface) RelayClient {
	return &relayClient{cc: cc}
}

func (c *relayClient) Ingest(ctx context.Context, opts ...grpc.CallOption) (Relay_IngestClient, error) {
	stream, err := c.cc.NewStream(ctx, &Relay_ServiceDesc.Streams[0], Relay_Ingest_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[wrapperspb.BytesValue, emptypb.Empty]{ClientStream: stream}, nil
}

func (c *relayClient) Subscribe(ctx context.Context, opts ...grpc.CallOption) (Relay_SubscribeClient, error) {
	stream, err := c.cc.NewStream(ctx, &Relay_ServiceDesc.Streams[1], Relay_Subscribe_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[wrapperspb.BytesValue, wrapperspb.BytesValue]{ClientStream: stream}, nil
}

func (c *relayClient) RecentEvents(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (Relay_RecentEventsClient, error) {
	stream, err := c.cc.NewStream(ctx, &Relay_ServiceDesc.Streams[2], Relay_RecentEvents_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *relayClient) Snapshot(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Relay_Snapshot_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *relayClient) CreateLink(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Relay_CreateLink_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *relayClient) UpdateLink(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Relay_UpdateLink_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *relayClient) SetLinkEnabled(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Relay_SetLinkEnabled_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *relayClient) DeleteLink(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, Relay_DeleteLink_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
