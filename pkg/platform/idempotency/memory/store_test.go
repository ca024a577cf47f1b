package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xarofive/bank-app-sub001/pkg/platform/sentinel"
)

func TestStore_SeenAndMark(t *testing.T) {
	store := New()
	ctx := context.Background()

	seen, err := store.Seen(ctx, "e1", "fraud")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.MarkProcessed(ctx, "e1", "fraud"))

	seen, err = store.Seen(ctx, "e1", "fraud")
	require.NoError(t, err)
	assert.True(t, seen)

	// Same event, different consumer is a distinct pair.
	seen, err = store.Seen(ctx, "e1", "notifications")
	require.NoError(t, err)
	assert.False(t, seen)

	assert.Equal(t, 1, store.Len())
}

func TestStore_MarkTwiceConflicts(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.MarkProcessed(ctx, "e1", "fraud"))

	err := store.MarkProcessed(ctx, "e1", "fraud")
	require.ErrorIs(t, err, sentinel.ErrConflict)
	assert.Equal(t, 1, store.Len())
}

func TestStore_ConcurrentMarksRecordExactlyOnce(t *testing.T) {
	store := New()
	ctx := context.Background()

	const goroutines = 50
	var wg sync.WaitGroup
	var winners atomic.Int32

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.MarkProcessed(ctx, "e1", "fraud"); err == nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.Equal(t, 1, store.Len())
}
