package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xarofive/bank-app-sub001/pkg/platform/broker"
)

func poll(t *testing.T, sub broker.Subscription) []*broker.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msgs, err := sub.Poll(ctx)
	require.NoError(t, err)
	return msgs
}

func TestBroker_OrderWithinPartition(t *testing.T) {
	b := New()
	ctx := context.Background()

	for _, v := range []string{"one", "two", "three"} {
		require.NoError(t, b.Publish(ctx, "bank.transfer.completed", []byte("ACC-1"), []byte(v)))
	}

	sub, err := b.Subscribe("fraud", "bank.transfer.completed")
	require.NoError(t, err)

	msgs := poll(t, sub)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", string(msgs[0].Value))
	assert.Equal(t, "two", string(msgs[1].Value))
	assert.Equal(t, "three", string(msgs[2].Value))

	// Same key always lands on the same partition.
	assert.Equal(t, msgs[0].Partition, msgs[1].Partition)
	assert.Equal(t, msgs[1].Partition, msgs[2].Partition)
}

func TestBroker_RedeliversUntilCommitted(t *testing.T) {
	b := New()
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "bank.settings.changed", []byte("U1"), []byte("payload")))

	sub, err := b.Subscribe("notifications", "bank.settings.changed")
	require.NoError(t, err)

	first := poll(t, sub)
	require.Len(t, first, 1)

	// Not committed: the message comes back.
	again := poll(t, sub)
	require.Len(t, again, 1)
	assert.Equal(t, first[0].Offset, again[0].Offset)

	require.NoError(t, sub.Commit(ctx, again[0]))

	ctxShort, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = sub.Poll(ctxShort)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBroker_GroupsTrackIndependentPositions(t *testing.T) {
	b := New()
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "bank.kyc.status_changed", []byte("U1"), []byte("approved")))

	fraud, err := b.Subscribe("fraud", "bank.kyc.status_changed")
	require.NoError(t, err)
	notif, err := b.Subscribe("notifications", "bank.kyc.status_changed")
	require.NoError(t, err)

	msgs := poll(t, fraud)
	require.Len(t, msgs, 1)
	require.NoError(t, fraud.Commit(ctx, msgs[0]))

	// The other group's position is untouched.
	msgs = poll(t, notif)
	require.Len(t, msgs, 1)
}

func TestBroker_CommitNeverMovesBackwards(t *testing.T) {
	b := New(WithPartitions(1))
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "t", []byte("k"), []byte("a")))
	require.NoError(t, b.Publish(ctx, "t", []byte("k"), []byte("b")))

	sub, err := b.Subscribe("g", "t")
	require.NoError(t, err)

	msgs := poll(t, sub)
	require.Len(t, msgs, 2)

	require.NoError(t, sub.Commit(ctx, msgs[1]))
	require.NoError(t, sub.Commit(ctx, msgs[0])) // late commit of an earlier offset

	ctxShort, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = sub.Poll(ctxShort)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBroker_PartitionForIsDeterministic(t *testing.T) {
	for _, key := range []string{"ACC-1", "ACC-2", "U1", ""} {
		p1 := broker.PartitionFor([]byte(key), 8)
		p2 := broker.PartitionFor([]byte(key), 8)
		assert.Equal(t, p1, p2)
		assert.GreaterOrEqual(t, p1, int32(0))
		assert.Less(t, p1, int32(8))
	}
}
