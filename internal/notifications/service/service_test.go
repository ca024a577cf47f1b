package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xarofive/bank-app-sub001/internal/notifications/service"
	"github.com/Xarofive/bank-app-sub001/internal/notifications/store/memory"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/audit"
	auditmemory "github.com/Xarofive/bank-app-sub001/pkg/platform/audit/store/memory"
	brokermemory "github.com/Xarofive/bank-app-sub001/pkg/platform/broker/memory"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/consumer"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/events"
	idemmemory "github.com/Xarofive/bank-app-sub001/pkg/platform/idempotency/memory"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func settingsEvent(userID string, enabled bool) events.Event {
	return events.New("settings", events.SettingsChanged{
		UserID:              userID,
		NotificationEnabled: enabled,
		Language:            "en",
	})
}

func kycEvent(userID string, status events.KycStatus) events.Event {
	return events.New("kyc", events.KycStatusChanged{
		UserID:    userID,
		Status:    status,
		Timestamp: time.Now().UTC(),
		Source:    "kyc",
	})
}

func TestHandleSettingsChangedUpdatesReplica(t *testing.T) {
	svc := service.New(memory.New(), discard())
	ctx := context.Background()

	require.NoError(t, svc.HandleSettingsChanged(ctx, settingsEvent("user-1", false)))

	pref, err := svc.Preference(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, pref.NotificationEnabled)
	assert.Equal(t, "en", pref.Language)
}

func TestNotifyRespectsPreferences(t *testing.T) {
	svc := service.New(memory.New(), discard())
	ctx := context.Background()

	// Opted out: no notification.
	require.NoError(t, svc.HandleSettingsChanged(ctx, settingsEvent("user-1", false)))
	require.NoError(t, svc.HandleKycStatusChanged(ctx, kycEvent("user-1", events.KycStatusApproved)))

	inbox, err := svc.Inbox(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, inbox)

	// Opted back in: notified again.
	require.NoError(t, svc.HandleSettingsChanged(ctx, settingsEvent("user-1", true)))
	require.NoError(t, svc.HandleKycStatusChanged(ctx, kycEvent("user-1", events.KycStatusRejected)))

	inbox, err = svc.Inbox(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Contains(t, inbox[0].Message, "REJECTED")
}

func TestNotifyDefaultsToEnabledWithoutReplicaEntry(t *testing.T) {
	svc := service.New(memory.New(), discard())
	ctx := context.Background()

	require.NoError(t, svc.HandleKycStatusChanged(ctx, kycEvent("user-new", events.KycStatusPending)))

	inbox, err := svc.Inbox(ctx, "user-new")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, string(events.KindKycStatusChanged), inbox[0].Kind)
}

func TestHandleTransferCompletedNotifiesSender(t *testing.T) {
	svc := service.New(memory.New(), discard())
	ctx := context.Background()

	ev := events.New("transfers", events.TransferCompleted{
		FromAccount: "acc-1",
		ToAccount:   "acc-2",
		Amount:      1500,
		Currency:    "EUR",
		OccurredAt:  time.Now().UTC(),
	})
	require.NoError(t, svc.HandleTransferCompleted(ctx, ev))

	inbox, err := svc.Inbox(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Contains(t, inbox[0].Message, "1500 EUR")
	assert.Equal(t, ev.EventID, inbox[0].EventID)
}

// TestKycTransitionsObservedInPublishOrder runs the service under the
// consumer runner: two status changes for one user must land in the inbox in
// the order they were published, even though they arrive as separate
// deliveries.
func TestKycTransitionsObservedInPublishOrder(t *testing.T) {
	brk := brokermemory.New()
	registry := events.NewRegistry()
	recorder := audit.NewRecorder(auditmemory.New())

	svc := service.New(memory.New(), discard())
	runner := consumer.New(consumer.Config{Name: "notifications"}, registry, idemmemory.New(), recorder, discard(),
		consumer.WithMetrics(consumer.NewMetrics(prometheus.NewRegistry())))
	svc.Register(runner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx, brk) }()

	publish := func(ev events.Event) {
		data, err := registry.Encode(ev)
		require.NoError(t, err)
		require.NoError(t, brk.Publish(ctx, ev.Kind.Topic(), []byte(ev.PartitionKey), data))
	}
	publish(kycEvent("user-1", events.KycStatusPending))
	publish(kycEvent("user-1", events.KycStatusApproved))

	require.Eventually(t, func() bool {
		inbox, err := svc.Inbox(context.Background(), "user-1")
		return err == nil && len(inbox) == 2
	}, 2*time.Second, 5*time.Millisecond)

	inbox, err := svc.Inbox(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Contains(t, inbox[0].Message, "PENDING")
	assert.Contains(t, inbox[1].Message, "APPROVED")

	entries, err := recorder.FindAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Error("runner did not stop after cancellation")
	}
}
