// Package memory keeps the latest KYC review per user in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Xarofive/bank-app-sub001/internal/kyc/models"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/sentinel"
)

type Store struct {
	mu      sync.RWMutex
	reviews map[string]models.Review
}

func New() *Store {
	return &Store{reviews: make(map[string]models.Review)}
}

// Upsert replaces the user's review with the given state.
func (s *Store) Upsert(_ context.Context, review models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[review.UserID] = review
	return nil
}

func (s *Store) FindByUser(_ context.Context, userID string) (models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	review, ok := s.reviews[userID]
	if !ok {
		return models.Review{}, fmt.Errorf("kyc review for %s: %w", userID, sentinel.ErrNotFound)
	}
	return review, nil
}
