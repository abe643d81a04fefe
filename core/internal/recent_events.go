package internal

import (
	"context"
	"sync"

	"github.com/xKoRx/echo/sdk/domain"
)

// DefaultRecentEventsCapacity eventos retenidos para el operador.
const DefaultRecentEventsCapacity = 500

// EventMirror destino secundario de eventos ruteados (p.ej. Redis stream).
type EventMirror interface {
	Mirror(ctx context.Context, ev domain.RoutedEvent)
}

// RecentEvents ring buffer de copias publicadas, sólo para visibilidad.
//
// Follow entrega los eventos nuevos a cada seguidor sin bloquear Add: un
// seguidor lento pierde eventos.
type RecentEvents struct {
	mu       sync.RWMutex
	buf      []domain.RoutedEvent
	next     int
	full     bool
	watchers map[chan domain.RoutedEvent]struct{}
	mirror   EventMirror
}

// NewRecentEvents crea el buffer. capacity <= 0 usa DefaultRecentEventsCapacity.
func NewRecentEvents(capacity int, mirror EventMirror) *RecentEvents {
	if capacity <= 0 {
		capacity = DefaultRecentEventsCapacity
	}
	return &RecentEvents{
		buf:      make([]domain.RoutedEvent, capacity),
		watchers: make(map[chan domain.RoutedEvent]struct{}),
		mirror:   mirror,
	}
}

// Add registra un evento ruteado.
func (r *RecentEvents) Add(ctx context.Context, ev domain.RoutedEvent) {
	r.mu.Lock()
	r.buf[r.next] = ev
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
	for ch := range r.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
	r.mu.Unlock()

	if r.mirror != nil {
		r.mirror.Mirror(ctx, ev)
	}
}

// List últimos limit eventos en orden cronológico. limit <= 0 retorna todos.
func (r *RecentEvents) List(limit int) []domain.RoutedEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.next
	if r.full {
		size = len(r.buf)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]domain.RoutedEvent, 0, limit)
	start := r.next - limit
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < limit; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// Follow canal con los eventos agregados desde ahora. cancel libera el seguidor.
func (r *RecentEvents) Follow(buffer int) (events <-chan domain.RoutedEvent, cancel func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan domain.RoutedEvent, buffer)

	r.mu.Lock()
	r.watchers[ch] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.watchers, ch)
			r.mu.Unlock()
		})
	}
}
