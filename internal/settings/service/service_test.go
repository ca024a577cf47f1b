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

	"github.com/Xarofive/bank-app-sub001/internal/settings/service"
	"github.com/Xarofive/bank-app-sub001/internal/settings/store/memory"
	brokermemory "github.com/Xarofive/bank-app-sub001/pkg/platform/broker/memory"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/events"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/publisher"
)

func newService(t *testing.T) (*service.Service, *brokermemory.Broker, *events.Registry) {
	t.Helper()

	brk := brokermemory.New()
	registry := events.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := publisher.New(brk, registry, publisher.Config{Source: "settings"}, logger,
		publisher.WithMetrics(publisher.NewMetrics(prometheus.NewRegistry())))
	return service.New(memory.New(), pub, logger), brk, registry
}

func TestUpdatePersistsAndPublishes(t *testing.T) {
	svc, brk, registry := newService(t)
	ctx := context.Background()

	settings, err := svc.Update(ctx, service.UpdateRequest{
		UserID:              "user-1",
		NotificationEnabled: true,
		Language:            "de",
		DarkModeEnabled:     true,
	})
	require.NoError(t, err)
	assert.True(t, settings.NotificationEnabled)

	stored, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, settings, stored)

	sub, err := brk.Subscribe("test", events.KindSettingsChanged.Topic())
	require.NoError(t, err)
	defer sub.Close()

	pollCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	msgs, err := sub.Poll(pollCtx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	ev, err := registry.Decode(msgs[0].Value)
	require.NoError(t, err)
	payload, ok := ev.Payload.(events.SettingsChanged)
	require.True(t, ok)
	assert.Equal(t, "user-1", payload.UserID)
	assert.True(t, payload.NotificationEnabled)
	assert.Equal(t, "de", payload.Language)
	assert.True(t, payload.DarkModeEnabled)
	assert.Equal(t, "user-1", ev.PartitionKey)
	assert.Equal(t, "settings", ev.Source)
}

func TestUpdateRejectsInvalidRequests(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, service.UpdateRequest{UserID: "", Language: "en"})
	require.Error(t, err)

	_, err = svc.Update(ctx, service.UpdateRequest{UserID: "user-1", Language: ""})
	require.Error(t, err)
}

func TestUpdateReplacesPreviousState(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, service.UpdateRequest{UserID: "user-1", NotificationEnabled: true, Language: "en"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, service.UpdateRequest{UserID: "user-1", NotificationEnabled: false, Language: "fr"})
	require.NoError(t, err)

	stored, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, stored.NotificationEnabled)
	assert.Equal(t, "fr", stored.Language)
}
