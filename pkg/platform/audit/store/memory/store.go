package memory

import (
	"context"
	"sync"

	audit "github.com/Xarofive/bank-app-sub001/pkg/platform/audit"
)

// Store is an in-memory audit store preserving insertion order.
type Store struct {
	mu      sync.RWMutex
	entries []audit.Entry
	byEvent map[string]struct{}
}

func New() *Store {
	return &Store{byEvent: make(map[string]struct{})}
}

// Append records the entry unless one already exists for its event.
func (s *Store) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEvent[entry.EventID]; ok {
		return nil
	}
	s.byEvent[entry.EventID] = struct{}{}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *Store) FindAll(_ context.Context) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Entry{}, s.entries...), nil
}

func (s *Store) FindByUser(_ context.Context, userID string) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Entry
	for _, entry := range s.entries {
		if entry.UserID == userID {
			out = append(out, entry)
		}
	}
	return out, nil
}
