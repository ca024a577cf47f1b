// Package memory keeps completed transfers in process memory. The transfers
// service owns this state; other contexts only ever learn about transfers
// through published events.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Xarofive/bank-app-sub001/internal/transfers/models"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/sentinel"
)

type Store struct {
	mu        sync.RWMutex
	transfers map[uuid.UUID]models.Transfer
	order     []uuid.UUID
}

func New() *Store {
	return &Store{transfers: make(map[uuid.UUID]models.Transfer)}
}

func (s *Store) Save(_ context.Context, transfer models.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transfers[transfer.ID]; ok {
		return fmt.Errorf("transfer %s: %w", transfer.ID, sentinel.ErrConflict)
	}
	s.transfers[transfer.ID] = transfer
	s.order = append(s.order, transfer.ID)
	return nil
}

func (s *Store) FindByID(_ context.Context, id uuid.UUID) (models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transfer, ok := s.transfers[id]
	if !ok {
		return models.Transfer{}, fmt.Errorf("transfer %s: %w", id, sentinel.ErrNotFound)
	}
	return transfer, nil
}

// FindByAccount returns transfers where the account is sender or receiver,
// in completion order.
func (s *Store) FindByAccount(_ context.Context, account string) ([]models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Transfer
	for _, id := range s.order {
		t := s.transfers[id]
		if t.FromAccount == account || t.ToAccount == account {
			out = append(out, t)
		}
	}
	return out, nil
}
