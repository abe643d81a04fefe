package internal

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	grpcSDK "github.com/xKoRx/echo/sdk/grpc"
	"github.com/xKoRx/echo/sdk/rpc"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"github.com/xKoRx/echo/sdk/wire"
)

const defaultInboundBuffer = 256

// RelayClientOptions conexión del agent al relay.
type RelayClientOptions struct {
	Target           string
	Backoff          time.Duration
	SendQueue        int
	KeepAliveTime    time.Duration
	KeepAliveTimeout time.Duration

	// DialOptions opciones extra (bufconn en tests).
	DialOptions []grpc.DialOption
}

// RelayClient streams Ingest y Subscribe con reconexión.
//
// Send encola sin bloquear: un frame que no cabe se pierde (best-effort).
// Las suscripciones deseadas se conservan y se reenvían en cada reconexión.
type RelayClient struct {
	client    *grpcSDK.Client
	relay     rpc.RelayClient
	backoff   time.Duration
	telemetry *telemetry.Client

	outbox chan []byte
	frames chan []byte

	mu        sync.Mutex
	topics    map[string]struct{}
	stream    rpc.Relay_SubscribeClient
	onConnect func()

	wg sync.WaitGroup
}

// NewRelayClient crea el cliente sin conectar; Start abre los streams.
func NewRelayClient(opts RelayClientOptions, tel *telemetry.Client) (*RelayClient, error) {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = 256
	}

	config := grpcSDK.DefaultClientConfig(opts.Target)
	if opts.KeepAliveTime > 0 {
		config.KeepAlive.Time = opts.KeepAliveTime
	}
	if opts.KeepAliveTimeout > 0 {
		config.KeepAlive.Timeout = opts.KeepAliveTimeout
	}
	config.UnaryInterceptors, config.StreamInterceptors = grpcSDK.ClientInterceptors(tel)
	config.DialOptions = opts.DialOptions

	client, err := grpcSDK.NewClient(config)
	if err != nil {
		return nil, err
	}

	return &RelayClient{
		client:    client,
		relay:     rpc.NewRelayClient(client.Conn()),
		backoff:   opts.Backoff,
		telemetry: tel,
		outbox:    make(chan []byte, opts.SendQueue),
		frames:    make(chan []byte, defaultInboundBuffer),
		topics:    make(map[string]struct{}),
	}, nil
}

// WaitForReady bloquea hasta que la conexión con el relay esté lista.
func (c *RelayClient) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return c.client.WaitForReady(ctx, timeout)
}

// OnConnect registra fn, invocada tras cada (re)conexión del stream de suscripción.
func (c *RelayClient) OnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// Start lanza los loops de ingest y suscripción hasta que ctx termine.
func (c *RelayClient) Start(ctx context.Context) {
	c.wg.Add(2)
	go c.ingestLoop(ctx)
	go c.subscribeLoop(ctx)
}

// Send encola un frame hacia el relay. Retorna false si la cola está llena.
func (c *RelayClient) Send(frame []byte) bool {
	select {
	case c.outbox <- frame:
		return true
	default:
		return false
	}
}

// Frames frames recibidos por suscripción.
func (c *RelayClient) Frames() <-chan []byte { return c.frames }

// Subscribe agrega topic a las suscripciones deseadas.
func (c *RelayClient) Subscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.topics[topic]; ok {
		return
	}
	c.topics[topic] = struct{}{}
	c.sendControlLocked(wire.ControlSubscribe, topic)
}

// Unsubscribe quita topic de las suscripciones deseadas.
func (c *RelayClient) Unsubscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.topics[topic]; !ok {
		return
	}
	delete(c.topics, topic)
	c.sendControlLocked(wire.ControlUnsubscribe, topic)
}

// sendControlLocked envía un frame de control por el stream vigente.
// Sin stream se omite: la reconexión reenvía el set completo.
func (c *RelayClient) sendControlLocked(op, topic string) {
	if c.stream == nil {
		return
	}
	if err := c.stream.Send(&wrapperspb.BytesValue{Value: wire.ControlFrame(op, topic)}); err != nil {
		c.telemetry.Debug(context.Background(), "Control frame not sent", semconv.Echo.Topic.String(topic))
	}
}

// Close espera los loops (ctx ya cancelado) y cierra la conexión.
func (c *RelayClient) Close() error {
	c.wg.Wait()
	return c.client.Close()
}

func (c *RelayClient) ingestLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		stream, err := c.relay.Ingest(ctx)
		if err != nil {
			if !c.wait(ctx, "Ingest stream failed", err) {
				return
			}
			continue
		}

		if err := c.pump(ctx, stream); err != nil {
			if !c.wait(ctx, "Ingest stream broken", err) {
				return
			}
			continue
		}
		return
	}
}

// pump envía frames hasta error o cancelación; al cancelar cierra el stream.
func (c *RelayClient) pump(ctx context.Context, stream rpc.Relay_IngestClient) error {
	for {
		select {
		case <-ctx.Done():
			_, _ = stream.CloseAndRecv()
			return nil
		case frame := <-c.outbox:
			if err := stream.Send(&wrapperspb.BytesValue{Value: frame}); err != nil {
				return err
			}
		}
	}
}

func (c *RelayClient) subscribeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		stream, err := c.relay.Subscribe(ctx)
		if err != nil {
			if !c.wait(ctx, "Subscribe stream failed", err) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.stream = stream
		for topic := range c.topics {
			c.sendControlLocked(wire.ControlSubscribe, topic)
		}
		onConnect := c.onConnect
		c.mu.Unlock()

		c.telemetry.Info(ctx, "Connected to relay", attribute.String("server.address", c.client.Target()))
		if onConnect != nil {
			onConnect()
		}

		err = c.receive(ctx, stream)

		c.mu.Lock()
		c.stream = nil
		c.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if !c.wait(ctx, "Subscribe stream broken", err) {
			return
		}
	}
}

func (c *RelayClient) receive(ctx context.Context, stream rpc.Relay_SubscribeClient) error {
	for {
		msg, err := stream.Recv()
		if err != nil {
			return err
		}
		select {
		case c.frames <- msg.GetValue():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// wait loggea la falla y espera el backoff. Retorna false si ctx terminó.
func (c *RelayClient) wait(ctx context.Context, msg string, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if err != nil && !errors.Is(err, io.EOF) && status.Code(err) != codes.Canceled {
		c.telemetry.Warn(ctx, msg, semconv.Echo.Reason.String(err.Error()))
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.backoff):
		return true
	}
}

// Drain espera a que la cola de salida se vacíe o venza timeout.
func (c *RelayClient) Drain(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for len(c.outbox) > 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
	return true
}
