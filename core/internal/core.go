// Package internal contiene la lógica interna del relay.
//
// El relay recibe eventos de las cuentas origen, los enruta a los destinos
// vivos y distribuye la configuración de links. Es una capa de orquestación:
// el pipeline de filtros y transformación vive en el SDK.
package internal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/xKoRx/echo/core/internal/repository"
	sdkgrpc "github.com/xKoRx/echo/sdk/grpc"
	"github.com/xKoRx/echo/sdk/rpc"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"github.com/xKoRx/echo/sdk/utils"
	"github.com/xKoRx/echo/sdk/wire"
)

// Core servicio principal del relay.
//
// Responsabilidades:
//   - Servidor gRPC (ingest, subscribe, operador)
//   - Status Engine, LinkRegistry, Router y Distributor
//   - Feed websocket y mirror Redis opcionales
//   - Telemetría (logs + métricas)
type Core struct {
	config    *Config
	clock     utils.Clock
	telemetry *telemetry.Client
	ownsTel   bool

	store  repository.LinkStore
	status *StatusEngine
	links  *LinkRegistry
	hub    *Hub
	events *RecentEvents
	router *Router
	dist   *Distributor
	psync  *PositionSync
	ingest *Ingest

	service    *RelayService
	grpcServer *sdkgrpc.Server
	feed       *EventsFeed
	redis      *redis.Client
	mirror     *RedisMirror

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// Option personaliza dependencias del Core (tests y embebidos).
type Option func(*Core)

// WithStore usa un settings store ya abierto.
func WithStore(store repository.LinkStore) Option { return func(c *Core) { c.store = store } }

// WithTelemetry usa un cliente de telemetría existente; el Core no lo cierra.
func WithTelemetry(tel *telemetry.Client) Option { return func(c *Core) { c.telemetry = tel } }

// WithClock reloj para liveness y timestamps.
func WithClock(clock utils.Clock) Option { return func(c *Core) { c.clock = clock } }

// New crea el relay y carga los links del store.
//
// Example:
//
//	cfg, _ := internal.LoadConfig(ctx, "")
//	core, err := internal.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer core.Shutdown()
func New(ctx context.Context, config *Config, opts ...Option) (*Core, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	coreCtx, cancel := context.WithCancel(ctx)
	c := &Core{config: config, ctx: coreCtx, cancel: cancel}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = utils.SystemClock{}
	}

	if c.telemetry == nil {
		tel, err := telemetry.New(coreCtx, config.Telemetry.ServiceName, config.Environment, config.Telemetry.Options()...)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		c.telemetry = tel
		c.ownsTel = true
	}
	c.ctx = telemetry.AppendCommonAttrs(c.ctx, semconv.Echo.Component.String(semconv.ComponentValues.Relay))

	if err := c.build(); err != nil {
		c.release()
		return nil, err
	}

	c.telemetry.Info(c.ctx, "Relay initialized",
		attribute.Int("grpc_port", config.GRPC.Port),
		attribute.String("store", config.Store.Backend),
		attribute.Bool("filter_at_relay", config.Relay.FilterAtRelay),
		attribute.Int64("heartbeat_interval_ms", config.Relay.HeartbeatIntervalMs),
	)
	return c, nil
}

func (c *Core) build() error {
	codec, err := wire.CodecByName(c.config.Relay.Codec)
	if err != nil {
		return err
	}

	if c.store == nil {
		store, err := c.openStore()
		if err != nil {
			return err
		}
		c.store = store
	}

	if c.config.Redis.Addr != "" {
		client, err := NewRedisClient(c.ctx, c.config.Redis.Addr, c.config.Redis.Password, c.config.Redis.DB)
		if err != nil {
			return err
		}
		c.redis = client
		c.mirror = NewRedisMirror(client, RedisMirrorConfig{
			Stream: c.config.Redis.Stream,
			MaxLen: c.config.Redis.MaxLen,
		}, c.telemetry)
	}

	var mirror EventMirror
	if c.mirror != nil {
		mirror = c.mirror
	}

	c.status = NewStatusEngine(c.clock, c.config.HeartbeatInterval(), c.telemetry)
	c.links = NewLinkRegistry()
	c.hub = NewHub(c.config.Relay.SubscriberBuffer)
	c.events = NewRecentEvents(c.config.Relay.RecentEvents, mirror)
	c.router = NewRouter(c.status, c.links, c.hub, c.events, RouterOptions{
		Codec:         codec,
		FilterAtRelay: c.config.Relay.FilterAtRelay,
		Clock:         c.clock,
	}, c.telemetry)
	c.dist = NewDistributor(c.store, c.links, c.hub, codec, c.clock, c.telemetry)
	c.psync = NewPositionSync(c.status, c.links, c.hub, codec, c.telemetry)
	c.ingest = NewIngest(c.status, c.router, c.dist, c.psync, c.telemetry)
	c.service = NewRelayService(c.ingest, c.hub, c.status, c.links, c.dist, c.events, c.clock, c.telemetry)
	if c.config.Websocket.Addr != "" {
		c.feed = NewEventsFeed(c.events, c.telemetry)
	}

	return c.dist.Load(c.ctx)
}

func (c *Core) openStore() (repository.LinkStore, error) {
	switch c.config.Store.Backend {
	case StorePostgres:
		store, err := repository.OpenPostgres(c.ctx, c.config.Postgres.DSN, c.config.Postgres.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return store, nil
	default:
		return repository.NewMemoryStore(c.clock), nil
	}
}

// Start abre los puertos y arranca los servidores.
//
// Un fallo de bind retorna error: el relay no arranca degradado.
func (c *Core) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("core already closed")
	}
	if c.started {
		return errors.New("core already started")
	}

	serverCfg := sdkgrpc.DefaultServerConfig(c.config.GRPC.Port)
	serverCfg.Address = c.config.GRPC.Address
	serverCfg.KeepAlive.Time = time.Duration(c.config.GRPC.KeepAliveTimeS) * time.Second
	serverCfg.KeepAlive.Timeout = time.Duration(c.config.GRPC.KeepAliveTimeoutS) * time.Second
	serverCfg.KeepAlive.MinPingInterval = time.Duration(c.config.GRPC.KeepAliveMinTimeS) * time.Second
	serverCfg.UnaryInterceptors, serverCfg.StreamInterceptors = sdkgrpc.ServerInterceptors(c.telemetry)

	server, err := sdkgrpc.NewServer(serverCfg)
	if err != nil {
		return err
	}

	if c.feed != nil {
		if err := c.feed.Listen(c.config.Websocket.Addr); err != nil {
			server.Stop()
			return err
		}
	}

	c.grpcServer = server
	rpc.RegisterRelayServer(server.GRPCServer(), c.service)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := server.Serve(c.ctx); err != nil {
			c.telemetry.Error(c.ctx, "gRPC server failed", err)
		}
	}()

	if c.feed != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.feed.Serve(); err != nil {
				c.telemetry.Error(c.ctx, "Events feed failed", err)
			}
		}()
	}

	if c.mirror != nil {
		c.mirror.Start(c.ctx)
	}

	c.started = true
	c.telemetry.Info(c.ctx, "Relay started",
		attribute.String("grpc_address", server.Address()),
		attribute.String("websocket_address", c.FeedAddress()),
	)
	return nil
}

// GRPCAddress dirección efectiva del servidor gRPC ("" antes de Start).
func (c *Core) GRPCAddress() string {
	if c.grpcServer == nil {
		return ""
	}
	return c.grpcServer.Address()
}

// FeedAddress dirección efectiva del feed websocket ("" si está deshabilitado).
func (c *Core) FeedAddress() string {
	if c.feed == nil {
		return ""
	}
	return c.feed.Addr()
}

// Shutdown detiene el relay gracefully.
func (c *Core) Shutdown() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.telemetry.Info(c.ctx, "Relay shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if c.feed != nil {
		if err := c.feed.Shutdown(shutdownCtx); err != nil {
			c.telemetry.Warn(c.ctx, "Events feed shutdown", semconv.Echo.Reason.String(err.Error()))
		}
	}

	// Cancelar el contexto dispara el graceful stop del servidor gRPC.
	c.cancel()
	c.wg.Wait()
	if c.mirror != nil {
		c.mirror.Wait()
	}

	c.telemetry.Info(c.ctx, "Relay stopped")
	return c.release()
}

func (c *Core) release() error {
	c.cancel()

	var errs []error
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if c.ownsTel {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}
