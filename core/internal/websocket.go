package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPingPeriod = 30 * time.Second
	wsPongWait   = 2 * wsPingPeriod
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventsFeed servidor HTTP con el feed en vivo de eventos ruteados.
//
//	GET /ws/events?limit=N  backlog de N eventos y luego los nuevos, un JSON por mensaje
//	GET /healthz            200 ok
type EventsFeed struct {
	events    *RecentEvents
	telemetry *telemetry.Client

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewEventsFeed crea el feed.
func NewEventsFeed(events *RecentEvents, tel *telemetry.Client) *EventsFeed {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return &EventsFeed{events: events, telemetry: tel}
}

// Handler rutas del feed.
func (f *EventsFeed) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws/events", f.serveEvents)
	return mux
}

// Listen abre el puerto. Un error aquí es fatal para el relay.
func (f *EventsFeed) Listen(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen websocket %s: %w", addr, err)
	}

	f.mu.Lock()
	f.listener = lis
	f.server = &http.Server{Handler: f.Handler(), ReadHeaderTimeout: 5 * time.Second}
	f.mu.Unlock()
	return nil
}

// Addr dirección efectiva tras Listen.
func (f *EventsFeed) Addr() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listener == nil {
		return ""
	}
	return f.listener.Addr().String()
}

// Serve atiende hasta Shutdown.
func (f *EventsFeed) Serve() error {
	f.mu.Lock()
	srv, lis := f.server, f.listener
	f.mu.Unlock()
	if srv == nil {
		return errors.New("events feed not listening")
	}
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown cierra el servidor HTTP.
func (f *EventsFeed) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	srv := f.server
	f.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (f *EventsFeed) serveEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			limit = n
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.telemetry.Warn(r.Context(), "Websocket upgrade failed", semconv.Echo.Reason.String(err.Error()))
		return
	}
	defer conn.Close()

	follow, stop := f.events.Follow(128)
	defer stop()

	// El lector sólo procesa pongs y detecta el cierre del cliente.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if limit > 0 {
		for _, ev := range f.events.List(limit) {
			if err := writeEvent(conn, ev); err != nil {
				return
			}
		}
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev := <-follow:
			if err := writeEvent(conn, ev); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev domain.RoutedEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(ev)
}
