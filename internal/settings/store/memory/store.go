// Package memory keeps the latest settings per user in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Xarofive/bank-app-sub001/internal/settings/models"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/sentinel"
)

type Store struct {
	mu       sync.RWMutex
	settings map[string]models.Settings
}

func New() *Store {
	return &Store{settings: make(map[string]models.Settings)}
}

func (s *Store) Upsert(_ context.Context, settings models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settings.UserID] = settings
	return nil
}

func (s *Store) FindByUser(_ context.Context, userID string) (models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settings[userID]
	if !ok {
		return models.Settings{}, fmt.Errorf("settings for %s: %w", userID, sentinel.ErrNotFound)
	}
	return settings, nil
}
