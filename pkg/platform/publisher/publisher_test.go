package publisher

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xarofive/bank-app-sub001/pkg/platform/broker"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/broker/memory"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/events"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/sentinel"
)

// flakyBroker fails the first failures publishes, then delegates.
type flakyBroker struct {
	delegate broker.Publisher
	failures int
	attempts int
}

func (f *flakyBroker) Publish(ctx context.Context, topic string, key, value []byte) error {
	f.attempts++
	if f.attempts <= f.failures {
		return sentinel.ErrUnavailable
	}
	return f.delegate.Publish(ctx, topic, key, value)
}

func (f *flakyBroker) Close() error { return f.delegate.Close() }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func testConfig() Config {
	return Config{
		Source:         "transfers-service",
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		AttemptTimeout: time.Second,
	}
}

func newPublisher(t *testing.T, brk broker.Publisher) *Publisher {
	t.Helper()
	return New(brk, events.NewRegistry(), testConfig(), testLogger(),
		WithMetrics(NewMetrics(prometheus.NewRegistry())))
}

func transferPayload(from string) events.TransferCompleted {
	return events.TransferCompleted{
		FromAccount: from,
		ToAccount:   "ACC-2",
		Amount:      10000,
		Currency:    "RUB",
		OccurredAt:  time.Now().UTC(),
	}
}

func TestPublisher_PublishesDurablyAcknowledged(t *testing.T) {
	mem := memory.New()
	pub := newPublisher(t, mem)

	ev, err := pub.Publish(context.Background(), transferPayload("ACC-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, ev.EventID)

	sub, err := mem.Subscribe("audit", events.KindTransferCompleted.Topic())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msgs, err := sub.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "ACC-1", string(msgs[0].Key))

	decoded, err := events.NewRegistry().Decode(msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, ev.EventID, decoded.EventID)
}

func TestPublisher_RetriesTransientFailures(t *testing.T) {
	flaky := &flakyBroker{delegate: memory.New(), failures: 2}
	pub := newPublisher(t, flaky)

	_, err := pub.Publish(context.Background(), transferPayload("ACC-1"))
	require.NoError(t, err)
	assert.Equal(t, 3, flaky.attempts)
}

func TestPublisher_SurfacesPublishFailedAfterRetryBudget(t *testing.T) {
	flaky := &flakyBroker{delegate: memory.New(), failures: 10}
	pub := newPublisher(t, flaky)

	_, err := pub.Publish(context.Background(), transferPayload("ACC-1"))
	require.ErrorIs(t, err, ErrPublishFailed)
	assert.Equal(t, 3, flaky.attempts, "attempt ceiling must be honored")
}

func TestPublisher_DoesNotRetrySchemaErrors(t *testing.T) {
	flaky := &flakyBroker{delegate: memory.New()}
	pub := newPublisher(t, flaky)

	// Invalid payload: amount must be positive.
	bad := transferPayload("ACC-1")
	bad.Amount = -5

	_, err := pub.Publish(context.Background(), bad)

	var schemaErr *events.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Zero(t, flaky.attempts, "schema errors must not reach the broker")
}

func TestPublisher_RejectsMissingPartitionKey(t *testing.T) {
	pub := newPublisher(t, memory.New())

	ev := events.New("transfers-service", transferPayload("ACC-1"))
	ev.PartitionKey = ""

	err := pub.PublishEvent(context.Background(), ev)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPublishFailed)
}

func TestPublisher_PreservesPerKeyOrder(t *testing.T) {
	mem := memory.New()
	pub := newPublisher(t, mem)

	var published []string
	for range 5 {
		ev, err := pub.Publish(context.Background(), transferPayload("ACC-1"))
		require.NoError(t, err)
		published = append(published, ev.EventID)
	}

	sub, err := mem.Subscribe("audit", events.KindTransferCompleted.Topic())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msgs, err := sub.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 5)

	registry := events.NewRegistry()
	for i, msg := range msgs {
		decoded, err := registry.Decode(msg.Value)
		require.NoError(t, err)
		assert.Equal(t, published[i], decoded.EventID)
	}
}
