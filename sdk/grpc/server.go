package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// ServerConfig configuración para servidor gRPC.
type ServerConfig struct {
	// Address dirección de bind (ej: "0.0.0.0")
	Address string

	// Port puerto del servidor (0 = efímero)
	Port int

	// KeepAlive configuración de keepalive
	KeepAlive *ServerKeepAliveConfig

	// MaxRecvMsgSize tamaño máximo de mensaje entrante (0 = default de grpc)
	MaxRecvMsgSize int

	// ShutdownGracePeriod periodo de gracia para shutdown
	ShutdownGracePeriod time.Duration

	UnaryInterceptors  []grpc.UnaryServerInterceptor
	StreamInterceptors []grpc.StreamServerInterceptor
}

// ServerKeepAliveConfig configuración de keepalive del servidor.
type ServerKeepAliveConfig struct {
	MaxConnectionIdle     time.Duration
	MaxConnectionAgeGrace time.Duration
	Time                  time.Duration
	Timeout               time.Duration
	// MinPingInterval intervalo mínimo aceptado de pings del cliente
	MinPingInterval time.Duration
}

// DefaultServerConfig retorna configuración por defecto.
func DefaultServerConfig(port int) *ServerConfig {
	return &ServerConfig{
		Address:             "0.0.0.0",
		Port:                port,
		ShutdownGracePeriod: 10 * time.Second,
		KeepAlive: &ServerKeepAliveConfig{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAgeGrace: time.Minute,
			Time:                  30 * time.Second,
			Timeout:               10 * time.Second,
			MinPingInterval:       5 * time.Second,
		},
	}
}

// Server wrapper sobre grpc.Server.
type Server struct {
	grpcServer *grpc.Server
	config     *ServerConfig
	listener   net.Listener
}

// NewServer crea el servidor y hace bind del listener TCP.
//
// Un error aquí es un fallo de transporte al arrancar.
func NewServer(config *ServerConfig) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	address := net.JoinHostPort(config.Address, fmt.Sprintf("%d", config.Port))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return NewServerWithListener(config, listener)
}

// NewServerWithListener crea el servidor sobre un listener existente (bufconn en tests).
func NewServerWithListener(config *ServerConfig, listener net.Listener) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if listener == nil {
		return nil, fmt.Errorf("listener cannot be nil")
	}

	return &Server{
		grpcServer: grpc.NewServer(serverOptions(config)...),
		config:     config,
		listener:   listener,
	}, nil
}

func serverOptions(config *ServerConfig) []grpc.ServerOption {
	var opts []grpc.ServerOption

	if ka := config.KeepAlive; ka != nil {
		opts = append(opts,
			grpc.KeepaliveParams(keepalive.ServerParameters{
				MaxConnectionIdle:     ka.MaxConnectionIdle,
				MaxConnectionAgeGrace: ka.MaxConnectionAgeGrace,
				Time:                  ka.Time,
				Timeout:               ka.Timeout,
			}),
			grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
				MinTime:             ka.MinPingInterval,
				PermitWithoutStream: true,
			}),
		)
	}
	if config.MaxRecvMsgSize > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(config.MaxRecvMsgSize))
	}
	if len(config.UnaryInterceptors) > 0 {
		opts = append(opts, grpc.ChainUnaryInterceptor(config.UnaryInterceptors...))
	}
	if len(config.StreamInterceptors) > 0 {
		opts = append(opts, grpc.ChainStreamInterceptor(config.StreamInterceptors...))
	}
	return opts
}

// GRPCServer retorna el servidor gRPC subyacente para registrar servicios.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// Address dirección efectiva del listener.
func (s *Server) Address() string {
	return s.listener.Addr().String()
}

// Serve bloquea hasta que Serve falle o ctx se cancele; en ese caso hace graceful shutdown.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.gracePeriod())
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

func (s *Server) gracePeriod() time.Duration {
	if s.config.ShutdownGracePeriod > 0 {
		return s.config.ShutdownGracePeriod
	}
	return 10 * time.Second
}

// Shutdown GracefulStop con tope en ctx; al vencer fuerza Stop.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.grpcServer.Stop()
		return fmt.Errorf("forced shutdown: %w", ctx.Err())
	}
}

// Stop detiene el servidor inmediatamente.
func (s *Server) Stop() {
	s.grpcServer.Stop()
}
