package consumer

import (
	"context"
	"database/sql"
	"fmt"

	txcontext "github.com/Xarofive/bank-app-sub001/pkg/platform/tx"
)

// UnitOfWork brackets one event's processing: the business effect, the
// processed-event record and the audit entry all succeed or fail together.
// The read position is only advanced after Run returns nil, so a failed unit
// leaves the event eligible for redelivery with no partial state behind.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// Nop runs the unit directly. It is the right choice when the handler's
// stores are in-memory or otherwise not transactional; atomicity then rests
// on the insert-if-absent semantics of the processed-event store.
type Nop struct{}

func (Nop) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// SQL wraps the unit in a database transaction. Stores built on the
// tx-from-context pattern join it automatically.
type SQL struct {
	db *sql.DB
}

func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback unit of work: %w (unit error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}
