package clients

import (
	"context"
	"sort"
	"sync"

	"github.com/dropDatabas3/authcore/internal/domain"
)

// MemoryStore es un domain.ClientStore en memoria para tests y desarrollo local.
// Guarda y devuelve copias.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]*domain.Client
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]*domain.Client)}
}

func (s *MemoryStore) Get(_ context.Context, clientID string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.m[clientID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, c *domain.Client, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.m[c.ClientID]
	switch {
	case exists && !overwrite:
		return domain.ErrConflict
	case !exists && overwrite:
		return domain.ErrNotFound
	}
	s.m[c.ClientID] = c.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, clientID)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Client, 0, len(s.m))
	for _, c := range s.m {
		out = append(out, *c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}
