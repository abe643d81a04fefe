package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
)

// StreamWriter subconjunto de *redis.Client usado por el mirror.
type StreamWriter interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisMirrorConfig configuración del mirror de eventos.
type RedisMirrorConfig struct {
	Stream string
	MaxLen int64
	Queue  int
}

// RedisMirror copia eventos ruteados a un stream Redis acotado.
//
// Mirror nunca bloquea al router: encola y un worker hace XADD. Con la cola
// llena el evento se pierde del mirror (sigue en RecentEvents).
type RedisMirror struct {
	client    StreamWriter
	cfg       RedisMirrorConfig
	queue     chan domain.RoutedEvent
	telemetry *telemetry.Client

	wg sync.WaitGroup
}

// NewRedisClient cliente Redis con ping de verificación.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisMirror crea el mirror. Start lanza el worker.
func NewRedisMirror(client StreamWriter, cfg RedisMirrorConfig, tel *telemetry.Client) *RedisMirror {
	if cfg.Stream == "" {
		cfg.Stream = "echo:routed"
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = 10000
	}
	if cfg.Queue <= 0 {
		cfg.Queue = 1024
	}
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return &RedisMirror{
		client:    client,
		cfg:       cfg,
		queue:     make(chan domain.RoutedEvent, cfg.Queue),
		telemetry: tel,
	}
}

// Mirror encola ev para el stream.
func (m *RedisMirror) Mirror(ctx context.Context, ev domain.RoutedEvent) {
	select {
	case m.queue <- ev:
	default:
		m.telemetry.Debug(ctx, "Redis mirror queue full", semconv.Echo.EventID.String(ev.EventID))
	}
}

// Start lanza el worker hasta que ctx termine.
func (m *RedisMirror) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-m.queue:
				if err := m.write(ctx, ev); err != nil {
					m.telemetry.Warn(ctx, "Redis mirror write failed",
						semconv.Echo.EventID.String(ev.EventID),
						semconv.Echo.Reason.String(err.Error()),
					)
				}
			}
		}
	}()
}

// Wait espera al worker.
func (m *RedisMirror) Wait() { m.wg.Wait() }

func (m *RedisMirror) write(ctx context.Context, ev domain.RoutedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return m.client.XAdd(ctx, &redis.XAddArgs{
		Stream: m.cfg.Stream,
		MaxLen: m.cfg.MaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event_id": ev.EventID,
			"topic":    ev.Topic,
			"link_id":  ev.LinkID,
			"event":    string(body),
		},
	}).Err()
}
