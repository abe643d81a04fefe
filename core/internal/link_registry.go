package internal

import (
	"sort"
	"sync"

	"github.com/xKoRx/echo/sdk/domain"
)

// LinkRegistry vista en memoria de los links vigentes.
//
// Thread-safe. El Distributor la actualiza tras cada mutación durable y el Router
// la consulta en cada evento. Índices:
//   - linkID → Link
//   - source_account → []linkID
type LinkRegistry struct {
	mu       sync.RWMutex
	links    map[string]domain.Link
	bySource map[string][]string
}

// NewLinkRegistry crea un registry vacío.
func NewLinkRegistry() *LinkRegistry {
	return &LinkRegistry{
		links:    make(map[string]domain.Link),
		bySource: make(map[string][]string),
	}
}

// Load reemplaza el contenido completo (arranque).
func (r *LinkRegistry) Load(links []domain.Link) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.links = make(map[string]domain.Link, len(links))
	r.bySource = make(map[string][]string)
	for _, l := range links {
		r.putLocked(l)
	}
}

// Put inserta o reemplaza un link. Ignora versiones anteriores a la guardada.
func (r *LinkRegistry) Put(link domain.Link) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.links[link.LinkID]; ok {
		if current.ConfigVersion > link.ConfigVersion {
			return
		}
		r.removeLocked(current)
	}
	r.putLocked(link)
}

// Remove elimina un link. Retorna false si no existía.
func (r *LinkRegistry) Remove(linkID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.links[linkID]
	if ok {
		r.removeLocked(current)
	}
	return ok
}

// Get copia de un link.
func (r *LinkRegistry) Get(linkID string) (domain.Link, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.links[linkID]
	if !ok {
		return domain.Link{}, false
	}
	return l.Clone(), true
}

// BySource links cuyo origen es source, ordenados por id.
func (r *LinkRegistry) BySource(source string) []domain.Link {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.bySource[source]
	out := make([]domain.Link, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.links[id].Clone())
	}
	return out
}

// ByDestination links cuyo destino es destination, ordenados por id.
func (r *LinkRegistry) ByDestination(destination string) []domain.Link {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Link
	for _, l := range r.links {
		if l.DestinationAccount == destination {
			out = append(out, l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LinkID < out[j].LinkID })
	return out
}

// All todos los links ordenados por id.
func (r *LinkRegistry) All() []domain.Link {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Link, 0, len(r.links))
	for _, l := range r.links {
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LinkID < out[j].LinkID })
	return out
}

func (r *LinkRegistry) putLocked(link domain.Link) {
	r.links[link.LinkID] = link.Clone()

	ids := append(r.bySource[link.SourceAccount], link.LinkID)
	sort.Strings(ids)
	r.bySource[link.SourceAccount] = ids
}

func (r *LinkRegistry) removeLocked(link domain.Link) {
	delete(r.links, link.LinkID)

	ids := r.bySource[link.SourceAccount]
	for i, id := range ids {
		if id == link.LinkID {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(r.bySource, link.SourceAccount)
	} else {
		r.bySource[link.SourceAccount] = ids
	}
}
