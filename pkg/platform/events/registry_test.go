package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedTime() time.Time {
	return time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)
}

func TestRegistry_RoundTrip(t *testing.T) {
	registry := NewRegistry()

	payloads := []Payload{
		TransferCompleted{
			FromAccount: "ACC-1",
			ToAccount:   "ACC-2",
			Amount:      10000,
			Currency:    "RUB",
			OccurredAt:  fixedTime(),
		},
		KycStatusChanged{
			UserID:    "U1",
			Status:    KycStatusApproved,
			Timestamp: fixedTime(),
			Source:    "kyc-service",
		},
		SettingsChanged{
			UserID:              "U1",
			NotificationEnabled: true,
			Language:            "ru",
			DarkModeEnabled:     false,
		},
	}

	for _, payload := range payloads {
		t.Run(string(payload.Kind()), func(t *testing.T) {
			original := New("test-service", payload)
			original.OccurredAt = fixedTime()

			data, err := registry.Encode(original)
			require.NoError(t, err)

			decoded, err := registry.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, original, decoded)
		})
	}
}

func TestRegistry_EncodeRejectsInvalidPayload(t *testing.T) {
	registry := NewRegistry()

	tests := []struct {
		name    string
		payload Payload
	}{
		{"missing source account", TransferCompleted{ToAccount: "ACC-2", Amount: 100, Currency: "RUB", OccurredAt: fixedTime()}},
		{"non-positive amount", TransferCompleted{FromAccount: "ACC-1", ToAccount: "ACC-2", Amount: 0, Currency: "RUB", OccurredAt: fixedTime()}},
		{"bad currency code", TransferCompleted{FromAccount: "ACC-1", ToAccount: "ACC-2", Amount: 100, Currency: "ROUBLES", OccurredAt: fixedTime()}},
		{"unknown kyc status", KycStatusChanged{UserID: "U1", Status: "MAYBE", Timestamp: fixedTime()}},
		{"settings without user", SettingsChanged{Language: "en"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Encode(New("test-service", tt.payload))

			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
		})
	}
}

func TestRegistry_EncodeRejectsKindMismatch(t *testing.T) {
	registry := NewRegistry()

	ev := New("test-service", SettingsChanged{UserID: "U1", Language: "en"})
	ev.Kind = KindTransferCompleted

	_, err := registry.Encode(ev)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestRegistry_DecodeRejectsUnknownKind(t *testing.T) {
	registry := NewRegistry()

	data, err := json.Marshal(map[string]any{
		"event_id":       "e1",
		"event_type":     "account.closed",
		"schema_version": 1,
		"payload":        map[string]any{},
	})
	require.NoError(t, err)

	_, err = registry.Decode(data)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, Kind("account.closed"), schemaErr.Kind)
}

func TestRegistry_DecodeRejectsGarbage(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Decode([]byte("not json at all"))

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

// settingsChangedV2 simulates an additive schema evolution of SettingsChanged.
type settingsChangedV2 struct {
	SettingsChanged
	Timezone string `json:"timezone"`
}

func (p settingsChangedV2) Validate() error {
	if p.Timezone == "" {
		return errors.New("timezone is required")
	}
	return p.SettingsChanged.Validate()
}

func TestRegistry_DecodeResolvesNarrowestCompatibleVersion(t *testing.T) {
	// An upgraded producer writes v2 envelopes. A consumer that only knows v1
	// must still decode them, ignoring the additive field.
	producer := NewRegistry()
	producer.Register(KindSettingsChanged, 2, JSONPayload[settingsChangedV2]())
	consumer := NewRegistry()

	ev := New("settings-service", settingsChangedV2{
		SettingsChanged: SettingsChanged{UserID: "U1", NotificationEnabled: true, Language: "en"},
		Timezone:        "Europe/Moscow",
	})
	ev.SchemaVersion = 2

	data, err := producer.Encode(ev)
	require.NoError(t, err)

	decoded, err := consumer.Decode(data)
	require.NoError(t, err)

	payload, ok := decoded.Payload.(SettingsChanged)
	require.True(t, ok, "v1 consumer should decode into the v1 payload type")
	assert.Equal(t, "U1", payload.UserID)
	assert.True(t, payload.NotificationEnabled)
}

func TestRegistry_DecodeRejectsVersionOlderThanAllCodecs(t *testing.T) {
	registry := NewRegistry()
	// Pretend v1 support was dropped for this kind.
	registry.codecs[KindSettingsChanged] = registry.codecs[KindSettingsChanged][:0]
	registry.Register(KindSettingsChanged, 3, JSONPayload[SettingsChanged]())

	producer := NewRegistry()
	data, err := producer.Encode(New("settings-service", SettingsChanged{UserID: "U1", Language: "en"}))
	require.NoError(t, err)

	_, err = registry.Decode(data)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, 1, schemaErr.Version)
}

func TestNew_AssignsUniqueOrderedIDs(t *testing.T) {
	payload := SettingsChanged{UserID: "U1", Language: "en"}

	first := New("settings-service", payload)
	second := New("settings-service", payload)

	assert.NotEmpty(t, first.EventID)
	assert.NotEqual(t, first.EventID, second.EventID)
	assert.Equal(t, "U1", first.PartitionKey)
	assert.Equal(t, 1, first.SchemaVersion)
	assert.Equal(t, "settings-service", first.Source)
}
