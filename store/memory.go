package store

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// MemoryStore implements RunStore in memory.
// Safe for concurrent use.
type MemoryStore struct {
	data map[string]*Transcript
	mu   sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*Transcript)}
}

func clone(t *Transcript) *Transcript {
	c := *t
	c.Messages = slices.Clone(t.Messages)
	return &c
}

func (s *MemoryStore) Save(ctx context.Context, t *Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[t.ID] = clone(t)
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(t), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
