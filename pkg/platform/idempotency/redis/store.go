// Package redis keeps processed-event markers as Redis keys with an optional
// TTL. It cannot join a SQL transaction, so it suits consumers whose effects
// are themselves idempotent or live outside Postgres.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Xarofive/bank-app-sub001/pkg/platform/sentinel"
)

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL bounds how long a marker is kept. Zero means no expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(eventID, consumerID string) string {
	return "processed:" + consumerID + ":" + eventID
}

func (s *Store) Seen(ctx context.Context, eventID, consumerID string) (bool, error) {
	n, err := s.client.Exists(ctx, key(eventID, consumerID)).Result()
	if err != nil {
		return false, fmt.Errorf("check processed event: %w: %w", sentinel.ErrUnavailable, err)
	}
	return n > 0, nil
}

func (s *Store) MarkProcessed(ctx context.Context, eventID, consumerID string) error {
	ok, err := s.client.SetNX(ctx, key(eventID, consumerID), time.Now().UTC().Format(time.RFC3339Nano), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("insert processed event: %w: %w", sentinel.ErrUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("event %s already processed by %s: %w", eventID, consumerID, sentinel.ErrConflict)
	}
	return nil
}
