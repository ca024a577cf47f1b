// Package memory holds the notifications context's preference replica and
// queued notifications in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Xarofive/bank-app-sub001/internal/notifications/models"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/sentinel"
)

type Store struct {
	mu            sync.RWMutex
	preferences   map[string]models.Preference
	notifications []models.Notification
}

func New() *Store {
	return &Store{preferences: make(map[string]models.Preference)}
}

func (s *Store) UpsertPreference(_ context.Context, pref models.Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[pref.UserID] = pref
	return nil
}

func (s *Store) Preference(_ context.Context, userID string) (models.Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pref, ok := s.preferences[userID]
	if !ok {
		return models.Preference{}, fmt.Errorf("preference for %s: %w", userID, sentinel.ErrNotFound)
	}
	return pref, nil
}

func (s *Store) Add(_ context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	return nil
}

// ByUser returns the user's notifications, oldest first.
func (s *Store) ByUser(_ context.Context, userID string) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}
