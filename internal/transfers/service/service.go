// Package service records completed transfers and announces them to the rest
// of the platform. The local record commits first; the event is published
// after, so a publish failure can never roll back a transfer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Xarofive/bank-app-sub001/internal/transfers/models"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/events"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/publisher"
)

type TransferStore interface {
	Save(ctx context.Context, transfer models.Transfer) error
	FindByID(ctx context.Context, id uuid.UUID) (models.Transfer, error)
	FindByAccount(ctx context.Context, account string) ([]models.Transfer, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, payload events.Payload) (events.Event, error)
}

// Service orchestrates transfer completion.
type Service struct {
	store     TransferStore
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

// WithClock overrides the completion timestamp source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store TransferStore, pub EventPublisher, logger *slog.Logger, opts ...Option) *Service {
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

// CompleteRequest describes a transfer that has settled.
type CompleteRequest struct {
	FromAccount string
	ToAccount   string
	Amount      int64
	Currency    string
}

// Complete records the transfer and publishes TransferCompleted. The returned
// transfer is committed even when the error is publisher.ErrPublishFailed; in
// that case the event never reached the broker and the transfer must be
// reconciled by hand, which the log entry carries enough detail for.
func (s *Service) Complete(ctx context.Context, req CompleteRequest) (models.Transfer, error) {
	transfer := models.Transfer{
		ID:          uuid.New(),
		FromAccount: req.FromAccount,
		ToAccount:   req.ToAccount,
		Amount:      req.Amount,
		Currency:    req.Currency,
		CompletedAt: s.now(),
	}
	if err := transfer.Validate(); err != nil {
		return models.Transfer{}, fmt.Errorf("complete transfer: %w", err)
	}

	if err := s.store.Save(ctx, transfer); err != nil {
		return models.Transfer{}, fmt.Errorf("save transfer: %w", err)
	}

	ev, err := s.publisher.Publish(ctx, events.TransferCompleted{
		FromAccount: transfer.FromAccount,
		ToAccount:   transfer.ToAccount,
		Amount:      transfer.Amount,
		Currency:    transfer.Currency,
		OccurredAt:  transfer.CompletedAt,
	})
	if err != nil {
		if errors.Is(err, publisher.ErrPublishFailed) {
			s.logger.Error("transfer committed but event not published",
				"transfer_id", transfer.ID,
				"event_id", ev.EventID,
				"from_account", transfer.FromAccount,
				"amount", transfer.Amount,
				"error", err,
			)
		}
		return transfer, fmt.Errorf("announce transfer %s: %w", transfer.ID, err)
	}

	s.logger.Info("transfer completed",
		"transfer_id", transfer.ID,
		"event_id", ev.EventID,
		"from_account", transfer.FromAccount,
		"to_account", transfer.ToAccount,
		"amount", transfer.Amount,
	)
	return transfer, nil
}

// History returns an account's transfers in completion order.
func (s *Service) History(ctx context.Context, account string) ([]models.Transfer, error) {
	return s.store.FindByAccount(ctx, account)
}
