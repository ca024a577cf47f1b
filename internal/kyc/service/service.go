// Package service transitions users' KYC verification status and announces
// each transition. Transitions for one user are published in the order they
// were applied; the user ID is the partition key.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Xarofive/bank-app-sub001/internal/kyc/models"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/events"
)

const sourceName = "kyc"

type ReviewStore interface {
	Upsert(ctx context.Context, review models.Review) error
	FindByUser(ctx context.Context, userID string) (models.Review, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, payload events.Payload) (events.Event, error)
}

type Service struct {
	store     ReviewStore
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store ReviewStore, pub EventPublisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		publisher: pub,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChangeStatus records the user's new verification status and publishes
// KycStatusChanged.
func (s *Service) ChangeStatus(ctx context.Context, userID string, status events.KycStatus) (models.Review, error) {
	review := models.Review{
		UserID:    userID,
		Status:    status,
		UpdatedAt: s.now(),
	}
	if err := review.Validate(); err != nil {
		return models.Review{}, fmt.Errorf("change kyc status: %w", err)
	}

	if err := s.store.Upsert(ctx, review); err != nil {
		return models.Review{}, fmt.Errorf("save kyc review: %w", err)
	}

	ev, err := s.publisher.Publish(ctx, events.KycStatusChanged{
		UserID:    review.UserID,
		Status:    review.Status,
		Timestamp: review.UpdatedAt,
		Source:    sourceName,
	})
	if err != nil {
		return review, fmt.Errorf("announce kyc status for %s: %w", userID, err)
	}

	s.logger.Info("kyc status changed",
		"user_id", userID,
		"status", status,
		"event_id", ev.EventID,
	)
	return review, nil
}

// Status returns the user's current review state.
func (s *Service) Status(ctx context.Context, userID string) (models.Review, error) {
	return s.store.FindByUser(ctx, userID)
}
