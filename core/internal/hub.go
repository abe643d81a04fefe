package internal

import (
	"sync"
	"sync/atomic"

	"github.com/xKoRx/echo/sdk/utils"
)

// DefaultSubscriberBuffer frames encolados por suscriptor antes de descartar.
const DefaultSubscriberBuffer = 1024

// Hub fabric pub/sub en proceso, keyed por topic.
//
// Publish serializa por topic (un único escritor por topic a la vez) y nunca
// bloquea: un suscriptor con la cola llena pierde el frame. No hay ack ni
// reenvío; quien no está suscripto al publicar no recibe el frame.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]*topicState
	buffer int
}

type topicState struct {
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

// Subscriber extremo de lectura de una conexión Subscribe.
type Subscriber struct {
	id      string
	out     chan []byte
	dropped atomic.Int64

	mu     sync.Mutex
	topics map[string]struct{}
	closed bool
}

// NewHub crea un hub. buffer <= 0 usa DefaultSubscriberBuffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{topics: make(map[string]*topicState), buffer: buffer}
}

// NewSubscriber crea un suscriptor sin topics.
func (h *Hub) NewSubscriber() *Subscriber {
	return &Subscriber{
		id:     utils.GenerateUUIDv7(),
		out:    make(chan []byte, h.buffer),
		topics: make(map[string]struct{}),
	}
}

// ID identificador del suscriptor.
func (s *Subscriber) ID() string { return s.id }

// C frames publicados en los topics suscriptos.
func (s *Subscriber) C() <-chan []byte { return s.out }

// Dropped frames descartados por cola llena.
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

// Topics topics actualmente suscriptos.
func (s *Subscriber) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	return out
}

// deliver encola sin bloquear. false si la cola estaba llena.
func (s *Subscriber) deliver(frame []byte) bool {
	select {
	case s.out <- frame:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Subscribe agrega topic al suscriptor. Idempotente.
func (h *Hub) Subscribe(sub *Subscriber, topic string) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	if _, ok := sub.topics[topic]; ok {
		return
	}
	sub.topics[topic] = struct{}{}

	ts := h.topic(topic, true)
	ts.mu.Lock()
	ts.subs[sub] = struct{}{}
	ts.mu.Unlock()
}

// Unsubscribe quita topic del suscriptor. Idempotente.
func (h *Hub) Unsubscribe(sub *Subscriber, topic string) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if _, ok := sub.topics[topic]; !ok {
		return
	}
	delete(sub.topics, topic)
	h.detach(sub, topic)
}

// Remove desuscribe de todos los topics. El canal C no se cierra.
func (h *Hub) Remove(sub *Subscriber) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	for topic := range sub.topics {
		h.detach(sub, topic)
	}
	sub.topics = make(map[string]struct{})
	sub.closed = true
}

// Publish entrega frame a los suscriptores actuales de topic. Retorna cuántos lo recibieron en cola.
func (h *Hub) Publish(topic string, frame []byte) int {
	ts := h.topic(topic, false)
	if ts == nil {
		return 0
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	delivered := 0
	for sub := range ts.subs {
		if sub.deliver(frame) {
			delivered++
		}
	}
	return delivered
}

// SubscriberCount suscriptores actuales de topic.
func (h *Hub) SubscriberCount(topic string) int {
	ts := h.topic(topic, false)
	if ts == nil {
		return 0
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.subs)
}

func (h *Hub) topic(topic string, create bool) *topicState {
	h.mu.RLock()
	ts := h.topics[topic]
	h.mu.RUnlock()
	if ts != nil || !create {
		return ts
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if ts = h.topics[topic]; ts == nil {
		ts = &topicState{subs: make(map[*Subscriber]struct{})}
		h.topics[topic] = ts
	}
	return ts
}

func (h *Hub) detach(sub *Subscriber, topic string) {
	ts := h.topic(topic, false)
	if ts == nil {
		return
	}
	ts.mu.Lock()
	delete(ts.subs, sub)
	ts.mu.Unlock()
}
