package grpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// ClientConfig configuración para cliente gRPC.
type ClientConfig struct {
	// Target dirección del servidor (ej: "127.0.0.1:7000")
	Target string

	KeepAlive *KeepAliveConfig

	// DialOptions opciones extra (ej: bufconn en tests)
	DialOptions []grpc.DialOption

	UnaryInterceptors  []grpc.UnaryClientInterceptor
	StreamInterceptors []grpc.StreamClientInterceptor
}

// KeepAliveConfig configuración de keepalive del cliente.
type KeepAliveConfig struct {
	Time                time.Duration
	Timeout             time.Duration
	PermitWithoutStream bool
}

// DefaultClientConfig retorna configuración por defecto.
func DefaultClientConfig(target string) *ClientConfig {
	return &ClientConfig{
		Target: target,
		KeepAlive: &KeepAliveConfig{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		},
	}
}

// Client wrapper sobre grpc.ClientConn.
type Client struct {
	conn   *grpc.ClientConn
	target string
}

// NewClient crea la conexión sin bloquear; el transporte se establece al primer uso.
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if ka := config.KeepAlive; ka != nil {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                ka.Time,
			Timeout:             ka.Timeout,
			PermitWithoutStream: ka.PermitWithoutStream,
		}))
	}
	if len(config.UnaryInterceptors) > 0 {
		opts = append(opts, grpc.WithChainUnaryInterceptor(config.UnaryInterceptors...))
	}
	if len(config.StreamInterceptors) > 0 {
		opts = append(opts, grpc.WithChainStreamInterceptor(config.StreamInterceptors...))
	}
	opts = append(opts, config.DialOptions...)

	conn, err := grpc.NewClient(config.Target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", config.Target, err)
	}
	return &Client{conn: conn, target: config.Target}, nil
}

// Conn conexión subyacente para los stubs de servicio.
func (c *Client) Conn() *grpc.ClientConn {
	return c.conn
}

// Target dirección del servidor.
func (c *Client) Target() string {
	return c.target
}

// Close cierra la conexión.
func (c *Client) Close() error {
	return c.conn.Close()
}

// State estado actual de la conexión.
func (c *Client) State() connectivity.State {
	return c.conn.GetState()
}

// WaitForReady espera a READY o a que venza timeout/ctx.
func (c *Client) WaitForReady(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c.conn.Connect()
	for {
		state := c.conn.GetState()
		if state == connectivity.Ready {
			return nil
		}
		if !c.conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("relay %s not ready (%s): %w", c.target, state, ctx.Err())
		}
	}
}
