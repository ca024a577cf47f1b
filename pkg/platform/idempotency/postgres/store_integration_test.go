//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/Xarofive/bank-app-sub001/pkg/platform/idempotency/postgres"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/sentinel"
	txcontext "github.com/Xarofive/bank-app-sub001/pkg/platform/tx"
	"github.com/Xarofive/bank-app-sub001/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "processed_events"))
}

func (s *PostgresStoreSuite) TestSeenAfterMark() {
	ctx := context.Background()
	eventID := uuid.NewString()

	seen, err := s.store.Seen(ctx, eventID, "fraud")
	s.Require().NoError(err)
	s.False(seen)

	s.Require().NoError(s.store.MarkProcessed(ctx, eventID, "fraud"))

	seen, err = s.store.Seen(ctx, eventID, "fraud")
	s.Require().NoError(err)
	s.True(seen)
}

func (s *PostgresStoreSuite) TestMarkTwiceConflicts() {
	ctx := context.Background()
	eventID := uuid.NewString()

	s.Require().NoError(s.store.MarkProcessed(ctx, eventID, "fraud"))
	err := s.store.MarkProcessed(ctx, eventID, "fraud")
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestConsumersAreIndependent() {
	ctx := context.Background()
	eventID := uuid.NewString()

	s.Require().NoError(s.store.MarkProcessed(ctx, eventID, "fraud"))

	seen, err := s.store.Seen(ctx, eventID, "notifications")
	s.Require().NoError(err)
	s.False(seen)
}

// TestConcurrentMarkExactlyOneWinner verifies that concurrent claims for the
// same event produce exactly one success.
func (s *PostgresStoreSuite) TestConcurrentMarkExactlyOneWinner() {
	ctx := context.Background()
	eventID := uuid.NewString()
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := s.store.MarkProcessed(ctx, eventID, "fraud")
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}()
	}

	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one mark should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should get conflict")
}

// TestRolledBackMarkLeavesNoRecord verifies the store joins the caller's
// transaction: a rollback discards the dedup record, so the event is
// processed again on redelivery.
func (s *PostgresStoreSuite) TestRolledBackMarkLeavesNoRecord() {
	ctx := context.Background()
	eventID := uuid.NewString()

	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)

	txCtx := txcontext.WithTx(ctx, tx)
	s.Require().NoError(s.store.MarkProcessed(txCtx, eventID, "fraud"))
	s.Require().NoError(tx.Rollback())

	seen, err := s.store.Seen(ctx, eventID, "fraud")
	s.Require().NoError(err)
	s.False(seen)
}
