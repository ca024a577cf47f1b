// Package memory holds the fraud context's account stats and flags in
// process memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Xarofive/bank-app-sub001/internal/fraud/models"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/sentinel"
)

type Store struct {
	mu    sync.RWMutex
	stats map[string]models.AccountStats
	flags []models.Flag
}

func New() *Store {
	return &Store{stats: make(map[string]models.AccountStats)}
}

// Apply folds one transfer into the account's stats.
func (s *Store) Apply(_ context.Context, stats models.AccountStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[stats.Account] = stats
	return nil
}

func (s *Store) Stats(_ context.Context, account string) (models.AccountStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.stats[account]
	if !ok {
		return models.AccountStats{}, fmt.Errorf("stats for %s: %w", account, sentinel.ErrNotFound)
	}
	return stats, nil
}

func (s *Store) AddFlag(_ context.Context, flag models.Flag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = append(s.flags, flag)
	return nil
}

// Flags returns every flag raised so far, oldest first.
func (s *Store) Flags(_ context.Context) ([]models.Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Flag{}, s.flags...), nil
}
