package repository

import (
	"context"
	"slices"
	"sync"
)

type memoryHistoryStore struct {
	mu      sync.RWMutex
	ids     []string
	written bool
}

// NewMemoryHistoryStore returns a process-local history. Seeded identifiers
// count as an existing history.
func NewMemoryHistoryStore(seed ...string) HistoryStore {
	return &memoryHistoryStore{
		ids:     slices.Clone(seed),
		written: len(seed) > 0,
	}
}

func (s *memoryHistoryStore) Load(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.written {
		return nil, ErrHistoryNotFound
	}
	return slices.Clone(s.ids), nil
}

func (s *memoryHistoryStore) Save(_ context.Context, history []string, _ []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids = slices.Clone(history)
	s.written = true
	return nil
}
