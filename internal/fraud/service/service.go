// Package service watches completed transfers for suspicious activity. It is
// purely a consumer: its account stats are a local read model folded from
// TransferCompleted events, and a large amount raises a flag for review.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Xarofive/bank-app-sub001/internal/fraud/models"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/consumer"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/events"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/sentinel"
)

// DefaultLargeAmountThreshold flags transfers at or above 10,000.00 in minor
// units.
const DefaultLargeAmountThreshold = 1_000_000

type StatsStore interface {
	Apply(ctx context.Context, stats models.AccountStats) error
	Stats(ctx context.Context, account string) (models.AccountStats, error)
	AddFlag(ctx context.Context, flag models.Flag) error
	Flags(ctx context.Context) ([]models.Flag, error)
}

type Service struct {
	store     StatsStore
	logger    *slog.Logger
	threshold int64
}

type Option func(*Service)

// WithThreshold overrides the large-amount flagging threshold.
func WithThreshold(threshold int64) Option {
	return func(s *Service) { s.threshold = threshold }
}

func New(store StatsStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		logger:    logger,
		threshold: DefaultLargeAmountThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches the service's handlers to a consumer runner.
func (s *Service) Register(runner *consumer.Runner) {
	runner.Handle(events.KindTransferCompleted, s.HandleTransferCompleted)
}

// HandleTransferCompleted folds the transfer into the sending account's stats
// and flags it when the amount crosses the threshold. The runner guarantees
// each event is applied once, so the stats never double-count a redelivery.
func (s *Service) HandleTransferCompleted(ctx context.Context, ev events.Event) error {
	payload, ok := ev.Payload.(events.TransferCompleted)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", ev.Payload, ev.Kind)
	}

	stats, err := s.store.Stats(ctx, payload.FromAccount)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		stats = models.AccountStats{Account: payload.FromAccount}
	case err != nil:
		return fmt.Errorf("load stats for %s: %w", payload.FromAccount, err)
	}
	stats.TransferCount++
	stats.TotalAmount += payload.Amount
	stats.LastTransfer = payload.OccurredAt

	if err := s.store.Apply(ctx, stats); err != nil {
		return fmt.Errorf("apply stats for %s: %w", payload.FromAccount, err)
	}

	if payload.Amount >= s.threshold {
		flag := models.Flag{
			Account:   payload.FromAccount,
			EventID:   ev.EventID,
			Amount:    payload.Amount,
			Currency:  payload.Currency,
			Reason:    "large amount",
			FlaggedAt: payload.OccurredAt,
		}
		if err := s.store.AddFlag(ctx, flag); err != nil {
			return fmt.Errorf("flag transfer %s: %w", ev.EventID, err)
		}
		s.logger.Warn("large transfer flagged",
			"account", payload.FromAccount,
			"event_id", ev.EventID,
			"amount", payload.Amount,
			"currency", payload.Currency,
		)
	}
	return nil
}

// Stats returns the running stats for one account.
func (s *Service) Stats(ctx context.Context, account string) (models.AccountStats, error) {
	return s.store.Stats(ctx, account)
}

// Flags returns every raised flag, oldest first.
func (s *Service) Flags(ctx context.Context) ([]models.Flag, error) {
	return s.store.Flags(ctx)
}
