// Package postgres persists the audit trail in the audit_entries table.
// Appends join the consumer's transaction from context so an audit write
// failure fails the whole unit of work.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	audit "github.com/Xarofive/bank-app-sub001/pkg/platform/audit"
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
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts the entry, idempotent on the observed event.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	query := `
		INSERT INTO audit_entries (id, event_id, event_type, message, user_id, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		entry.ID,
		entry.EventID,
		entry.EventType,
		entry.Message,
		entry.UserID,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// FindAll returns every entry in storage order.
func (s *Store) FindAll(ctx context.Context) ([]audit.Entry, error) {
	query := `
		SELECT id, event_id, event_type, message, user_id, recorded_at
		FROM audit_entries
		ORDER BY recorded_at, id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// FindByUser returns the entries for one subject, in storage order.
func (s *Store) FindByUser(ctx context.Context, userID string) ([]audit.Entry, error) {
	query := `
		SELECT id, event_id, event_type, message, user_id, recorded_at
		FROM audit_entries
		WHERE user_id = $1
		ORDER BY recorded_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query audit entries by user: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var entries []audit.Entry

	for rows.Next() {
		var entry audit.Entry
		err := rows.Scan(
			&entry.ID,
			&entry.EventID,
			&entry.EventType,
			&entry.Message,
			&entry.UserID,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
