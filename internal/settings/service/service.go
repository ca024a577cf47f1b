// Package service updates user preferences and announces each change so
// consuming contexts can refresh their local replicas.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Xarofive/bank-app-sub001/internal/settings/models"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/events"
)

type SettingsStore interface {
	Upsert(ctx context.Context, settings models.Settings) error
	FindByUser(ctx context.Context, userID string) (models.Settings, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, payload events.Payload) (events.Event, error)
}

type Service struct {
	store     SettingsStore
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store SettingsStore, pub EventPublisher, logger *slog.Logger, opts ...Option) *Service {
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

// UpdateRequest carries a user's full preference set. Updates replace the
// previous state; consumers converge on the latest published change per user.
type UpdateRequest struct {
	UserID              string
	NotificationEnabled bool
	Language            string
	DarkModeEnabled     bool
}

// Update persists the preferences and publishes SettingsChanged.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (models.Settings, error) {
	settings := models.Settings{
		UserID:              req.UserID,
		NotificationEnabled: req.NotificationEnabled,
		Language:            req.Language,
		DarkModeEnabled:     req.DarkModeEnabled,
		UpdatedAt:           s.now(),
	}
	if err := settings.Validate(); err != nil {
		return models.Settings{}, fmt.Errorf("update settings: %w", err)
	}

	if err := s.store.Upsert(ctx, settings); err != nil {
		return models.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	ev, err := s.publisher.Publish(ctx, events.SettingsChanged{
		UserID:              settings.UserID,
		NotificationEnabled: settings.NotificationEnabled,
		Language:            settings.Language,
		DarkModeEnabled:     settings.DarkModeEnabled,
	})
	if err != nil {
		return settings, fmt.Errorf("announce settings for %s: %w", req.UserID, err)
	}

	s.logger.Info("settings updated",
		"user_id", settings.UserID,
		"event_id", ev.EventID,
	)
	return settings, nil
}

// Get returns the user's current preferences.
func (s *Service) Get(ctx context.Context, userID string) (models.Settings, error) {
	return s.store.FindByUser(ctx, userID)
}
