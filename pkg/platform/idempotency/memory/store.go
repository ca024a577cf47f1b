package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Xarofive/bank-app-sub001/pkg/platform/sentinel"
)

type pairKey struct {
	eventID    string
	consumerID string
}

// Store is an in-memory idempotency store for tests and local development.
type Store struct {
	mu        sync.Mutex
	processed map[pairKey]time.Time
}

func New() *Store {
	return &Store{processed: make(map[pairKey]time.Time)}
}

func (s *Store) Seen(_ context.Context, eventID, consumerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[pairKey{eventID, consumerID}]
	return ok, nil
}

func (s *Store) MarkProcessed(_ context.Context, eventID, consumerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{eventID, consumerID}
	if _, ok := s.processed[key]; ok {
		return fmt.Errorf("event %s already processed by %s: %w", eventID, consumerID, sentinel.ErrConflict)
	}
	s.processed[key] = time.Now()
	return nil
}

// ProcessedAt reports whether and when the pair was recorded.
func (s *Store) ProcessedAt(eventID, consumerID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.processed[pairKey{eventID, consumerID}]
	return at, ok
}

// Len returns the number of recorded pairs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed)
}
