// Package service turns consumed events into user notifications. It keeps a
// local replica of notification preferences, converged from SettingsChanged,
// and consults only that replica when deciding whether to notify; it never
// calls the settings context.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Xarofive/bank-app-sub001/internal/notifications/models"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/consumer"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/events"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/sentinel"
)

type NotificationStore interface {
	UpsertPreference(ctx context.Context, pref models.Preference) error
	Preference(ctx context.Context, userID string) (models.Preference, error)
	Add(ctx context.Context, n models.Notification) error
	ByUser(ctx context.Context, userID string) ([]models.Notification, error)
}

type Service struct {
	store  NotificationStore
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store NotificationStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches the service's handlers to a consumer runner.
func (s *Service) Register(runner *consumer.Runner) {
	runner.Handle(events.KindSettingsChanged, s.HandleSettingsChanged)
	runner.Handle(events.KindTransferCompleted, s.HandleTransferCompleted)
	runner.Handle(events.KindKycStatusChanged, s.HandleKycStatusChanged)
}

// HandleSettingsChanged refreshes the local preference replica. Events for
// one user arrive in publish order, so the replica converges on the latest
// state.
func (s *Service) HandleSettingsChanged(ctx context.Context, ev events.Event) error {
	payload, ok := ev.Payload.(events.SettingsChanged)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", ev.Payload, ev.Kind)
	}

	pref := models.Preference{
		UserID:              payload.UserID,
		NotificationEnabled: payload.NotificationEnabled,
		Language:            payload.Language,
		UpdatedAt:           ev.OccurredAt,
	}
	if err := s.store.UpsertPreference(ctx, pref); err != nil {
		return fmt.Errorf("replicate preference for %s: %w", payload.UserID, err)
	}
	return nil
}

func (s *Service) HandleTransferCompleted(ctx context.Context, ev events.Event) error {
	payload, ok := ev.Payload.(events.TransferCompleted)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", ev.Payload, ev.Kind)
	}

	message := fmt.Sprintf("Transfer of %d %s to %s completed", payload.Amount, payload.Currency, payload.ToAccount)
	return s.notify(ctx, ev, payload.FromAccount, message)
}

func (s *Service) HandleKycStatusChanged(ctx context.Context, ev events.Event) error {
	payload, ok := ev.Payload.(events.KycStatusChanged)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", ev.Payload, ev.Kind)
	}

	message := fmt.Sprintf("Your identity verification status is now %s", payload.Status)
	return s.notify(ctx, ev, payload.UserID, message)
}

// notify queues a notification unless the user's replicated preferences have
// notifications disabled. A user with no replica entry is notified; opting
// out requires an observed SettingsChanged saying so.
func (s *Service) notify(ctx context.Context, ev events.Event, userID, message string) error {
	pref, err := s.store.Preference(ctx, userID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		// No replica entry yet, fall through and notify.
	case err != nil:
		return fmt.Errorf("load preference for %s: %w", userID, err)
	case !pref.NotificationEnabled:
		s.logger.Debug("notification suppressed by preference",
			"user_id", userID,
			"event_id", ev.EventID,
		)
		return nil
	}

	n := models.Notification{
		UserID:    userID,
		EventID:   ev.EventID,
		Kind:      string(ev.Kind),
		Message:   message,
		CreatedAt: s.now(),
	}
	if err := s.store.Add(ctx, n); err != nil {
		return fmt.Errorf("queue notification for %s: %w", userID, err)
	}
	return nil
}

// Inbox returns the user's notifications, oldest first.
func (s *Service) Inbox(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.store.ByUser(ctx, userID)
}

// Preference exposes the replica state, mainly for operational checks.
func (s *Service) Preference(ctx context.Context, userID string) (models.Preference, error) {
	return s.store.Preference(ctx, userID)
}
