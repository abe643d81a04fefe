package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/utils"
)

// MemoryStore LinkStore en memoria. No sobrevive reinicios.
type MemoryStore struct {
	mu      sync.RWMutex
	clock   utils.Clock
	links   map[string]domain.Link
	version int64
}

// NewMemoryStore crea un store vacío.
func NewMemoryStore(clock utils.Clock) *MemoryStore {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &MemoryStore{clock: clock, links: make(map[string]domain.Link)}
}

func (s *MemoryStore) List(_ context.Context) ([]domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Link, 0, len(s.links))
	for _, l := range s.links {
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LinkID < out[j].LinkID })
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, linkID string) (domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.links[linkID]
	if !ok {
		return domain.Link{}, fmt.Errorf("%w: %s", ErrLinkNotFound, linkID)
	}
	return l.Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, link domain.Link) (domain.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[link.LinkID]; ok {
		return domain.Link{}, fmt.Errorf("%w: %s", ErrLinkExists, link.LinkID)
	}
	if err := s.checkPairLocked(link); err != nil {
		return domain.Link{}, err
	}
	return s.saveLocked(link), nil
}

func (s *MemoryStore) Update(_ context.Context, link domain.Link) (domain.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[link.LinkID]; !ok {
		return domain.Link{}, fmt.Errorf("%w: %s", ErrLinkNotFound, link.LinkID)
	}
	if err := s.checkPairLocked(link); err != nil {
		return domain.Link{}, err
	}
	return s.saveLocked(link), nil
}

func (s *MemoryStore) SetEnabled(_ context.Context, linkID string, enabled bool) (domain.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.links[linkID]
	if !ok {
		return domain.Link{}, fmt.Errorf("%w: %s", ErrLinkNotFound, linkID)
	}
	current.Enabled = enabled
	return s.saveLocked(current), nil
}

func (s *MemoryStore) Delete(_ context.Context, linkID string) (domain.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.links[linkID]
	if !ok {
		return domain.Link{}, fmt.Errorf("%w: %s", ErrLinkNotFound, linkID)
	}
	delete(s.links, linkID)

	s.version++
	current.ConfigVersion = s.version
	current.UpdatedAt = s.clock.Now()
	return current.Clone(), nil
}

func (s *MemoryStore) Close() error { return nil }

// checkPairLocked un par origen/destino pertenece a un único link.
func (s *MemoryStore) checkPairLocked(link domain.Link) error {
	for id, other := range s.links {
		if id == link.LinkID {
			continue
		}
		if other.SourceAccount == link.SourceAccount && other.DestinationAccount == link.DestinationAccount {
			return fmt.Errorf("%w: %s->%s used by %s", ErrLinkExists, link.SourceAccount, link.DestinationAccount, id)
		}
	}
	return nil
}

func (s *MemoryStore) saveLocked(link domain.Link) domain.Link {
	s.version++
	stored := link.Clone()
	stored.ConfigVersion = s.version
	stored.UpdatedAt = s.clock.Now()
	stored.EquityRatio = 0
	s.links[stored.LinkID] = stored
	return stored.Clone()
}
