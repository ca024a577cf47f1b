// Package idempotency records which (event, consumer) pairs have already been
// applied, turning the broker's at-least-once delivery into exactly-once
// observable effect downstream.
package idempotency

import (
	"context"
)

// Store is the durable witness of processed events, keyed by the
// (eventID, consumerID) composite. It is shared by every replica of a
// consumer identity, so MarkProcessed must be an atomic insert-if-absent:
// when two replicas race on the same event during a partition rebalance,
// exactly one insert succeeds and the loser's unit of work fails instead of
// double-applying.
type Store interface {
	// Seen reports whether the pair was already recorded. Consumers call it
	// before applying any business effect.
	Seen(ctx context.Context, eventID, consumerID string) (bool, error)

	// MarkProcessed records the pair, atomically with the business effect
	// when the backing store supports the caller's unit of work. It returns
	// sentinel.ErrConflict if the pair already exists.
	MarkProcessed(ctx context.Context, eventID, consumerID string) error
}
