// Package postgres persists processed-event records in the processed_events
// table. When the consumer's unit of work put a transaction in context, both
// operations join it, which is what makes the dedup record atomic with the
// business effect and the audit entry.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Xarofive/bank-app-sub001/pkg/platform/sentinel"
	txcontext "github.com/Xarofive/bank-app-sub001/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Seen(ctx context.Context, eventID, consumerID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1 AND consumer_id = $2)`

	var seen bool
	err := s.execer(ctx).QueryRowContext(ctx, query, eventID, consumerID).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("check processed event: %w: %w", sentinel.ErrUnavailable, err)
	}
	return seen, nil
}

// MarkProcessed inserts the pair. ON CONFLICT DO NOTHING plus the affected
// row count gives insert-if-absent atomicity across replicas.
func (s *Store) MarkProcessed(ctx context.Context, eventID, consumerID string) error {
	query := `
		INSERT INTO processed_events (event_id, consumer_id, processed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id, consumer_id) DO NOTHING
	`
	result, err := s.execer(ctx).ExecContext(ctx, query, eventID, consumerID, time.Now())
	if err != nil {
		return fmt.Errorf("insert processed event: %w: %w", sentinel.ErrUnavailable, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert processed event: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("event %s already processed by %s: %w", eventID, consumerID, sentinel.ErrConflict)
	}
	return nil
}
