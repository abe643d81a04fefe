package grpc

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/utils"
)

const traceIDHeader = "echo-trace-id"

func rpcAttrs(method, kind string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("rpc.system", "grpc"),
		attribute.String("rpc.method", method),
		attribute.String("rpc.type", kind),
	}
}

// LoggingUnaryClientInterceptor registra cada llamada unary con duración y resultado.
func LoggingUnaryClientInterceptor(tel *telemetry.Client) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)

		attrs := append(rpcAttrs(method, "unary"), attribute.Int64("rpc.duration_ms", time.Since(start).Milliseconds()))
		if err != nil {
			tel.Error(ctx, "gRPC call failed", err, attrs...)
		} else {
			tel.Debug(ctx, "gRPC call succeeded", attrs...)
		}
		return err
	}
}

// LoggingStreamClientInterceptor registra la apertura de streams del cliente.
func LoggingStreamClientInterceptor(tel *telemetry.Client) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		stream, err := streamer(ctx, desc, cc, method, opts...)
		if err != nil {
			tel.Error(ctx, "gRPC stream open failed", err, rpcAttrs(method, "stream")...)
			return nil, err
		}
		tel.Debug(ctx, "gRPC stream opened", rpcAttrs(method, "stream")...)
		return stream, nil
	}
}

// LoggingUnaryServerInterceptor registra cada handler unary.
func LoggingUnaryServerInterceptor(tel *telemetry.Client) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		attrs := append(rpcAttrs(info.FullMethod, "unary"), attribute.Int64("rpc.duration_ms", time.Since(start).Milliseconds()))
		if err != nil {
			tel.Warn(ctx, "gRPC handler failed", append(attrs, attribute.String("rpc.error", err.Error()))...)
		} else {
			tel.Debug(ctx, "gRPC handler succeeded", attrs...)
		}
		return resp, err
	}
}

// LoggingStreamServerInterceptor registra inicio y fin de cada stream del servidor.
func LoggingStreamServerInterceptor(tel *telemetry.Client) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		attrs := rpcAttrs(info.FullMethod, "stream")
		tel.Debug(ss.Context(), "gRPC stream started", attrs...)

		err := handler(srv, ss)

		attrs = append(attrs, attribute.Int64("rpc.duration_ms", time.Since(start).Milliseconds()))
		if err != nil && status.Code(err) != codes.Canceled {
			tel.Warn(ss.Context(), "gRPC stream ended with error", append(attrs, attribute.String("rpc.error", err.Error()))...)
		} else {
			tel.Debug(ss.Context(), "gRPC stream completed", attrs...)
		}
		return err
	}
}

// RecoveryUnaryServerInterceptor convierte un panic del handler en codes.Internal.
func RecoveryUnaryServerInterceptor(tel *telemetry.Client) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = status.Errorf(codes.Internal, "panic in %s", info.FullMethod)
				tel.Error(ctx, "gRPC handler panic", fmt.Errorf("%v", r), rpcAttrs(info.FullMethod, "unary")...)
			}
		}()
		return handler(ctx, req)
	}
}

// RecoveryStreamServerInterceptor idem para streams.
func RecoveryStreamServerInterceptor(tel *telemetry.Client) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = status.Errorf(codes.Internal, "panic in %s", info.FullMethod)
				tel.Error(ss.Context(), "gRPC stream panic", fmt.Errorf("%v", r), rpcAttrs(info.FullMethod, "stream")...)
			}
		}()
		return handler(srv, ss)
	}
}

// TracingUnaryClientInterceptor propaga el trace-id del contexto por metadata.
func TracingUnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(outgoingTraceID(ctx), method, req, reply, cc, opts...)
	}
}

// TracingStreamClientInterceptor propaga el trace-id en streams.
func TracingStreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return streamer(outgoingTraceID(ctx), desc, cc, method, opts...)
	}
}

// TracingUnaryServerInterceptor extrae el trace-id de metadata al contexto.
func TracingUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(incomingTraceID(ctx), req)
	}
}

// TracingStreamServerInterceptor idem para streams.
func TracingStreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: incomingTraceID(ss.Context())})
	}
}

type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context { return w.ctx }

// ServerInterceptors cadena estándar del relay: tracing, recovery, logging.
func ServerInterceptors(tel *telemetry.Client) ([]grpc.UnaryServerInterceptor, []grpc.StreamServerInterceptor) {
	return []grpc.UnaryServerInterceptor{
			TracingUnaryServerInterceptor(),
			RecoveryUnaryServerInterceptor(tel),
			LoggingUnaryServerInterceptor(tel),
		}, []grpc.StreamServerInterceptor{
			TracingStreamServerInterceptor(),
			RecoveryStreamServerInterceptor(tel),
			LoggingStreamServerInterceptor(tel),
		}
}

// ClientInterceptors cadena estándar de agente y CLI: tracing, logging.
func ClientInterceptors(tel *telemetry.Client) ([]grpc.UnaryClientInterceptor, []grpc.StreamClientInterceptor) {
	return []grpc.UnaryClientInterceptor{
			TracingUnaryClientInterceptor(),
			LoggingUnaryClientInterceptor(tel),
		}, []grpc.StreamClientInterceptor{
			TracingStreamClientInterceptor(),
			LoggingStreamClientInterceptor(tel),
		}
}

type contextKey string

const traceIDKey contextKey = "echo_trace_id"

func outgoingTraceID(ctx context.Context) context.Context {
	if traceID := GetTraceID(ctx); traceID != "" {
		return metadata.AppendToOutgoingContext(ctx, traceIDHeader, traceID)
	}
	return ctx
}

func incomingTraceID(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	if values := md.Get(traceIDHeader); len(values) > 0 && values[0] != "" {
		return SetTraceID(ctx, values[0])
	}
	return ctx
}

// SetTraceID guarda el trace-id en el contexto.
func SetTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID trace-id del contexto o "".
func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(traceIDKey).(string)
	return traceID
}

// GetOrGenerateTraceID retorna el trace-id del contexto o genera un UUIDv7.
func GetOrGenerateTraceID(ctx context.Context) (context.Context, string) {
	if traceID := GetTraceID(ctx); traceID != "" {
		return ctx, traceID
	}
	traceID := utils.GenerateUUIDv7()
	return SetTraceID(ctx, traceID), traceID
}
