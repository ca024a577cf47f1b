// Package events defines the domain-event contract shared by every bounded
// context: the event envelope, the closed set of event kinds with their typed
// payloads, and the versioned schema registry used to encode and decode them
// on the wire.
package events

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies a domain-event type. The set of kinds is closed; each kind
// maps one-to-one onto a broker topic.
type Kind string

const (
	KindTransferCompleted Kind = "transfer.completed"
	KindKycStatusChanged  Kind = "kyc.status_changed"
	KindSettingsChanged   Kind = "settings.changed"
)

// Kinds returns every known event kind.
func Kinds() []Kind {
	return []Kind{KindTransferCompleted, KindKycStatusChanged, KindSettingsChanged}
}

// Topic is the broker topic carrying events of this kind.
func (k Kind) Topic() string {
	return "bank." + string(k)
}

// KindForTopic maps a broker topic back to its event kind.
func KindForTopic(topic string) (Kind, bool) {
	k := Kind(strings.TrimPrefix(topic, "bank."))
	for _, known := range Kinds() {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// Payload is a kind-specific event body. Implementations carry the routing
// key for the entity whose history must stay ordered.
type Payload interface {
	Kind() Kind
	PartitionKey() string
	Validate() error
}

// Event is an immutable business fact. It is created once by the producing
// service at the point its local transaction commits and never mutated after.
type Event struct {
	EventID       string
	Kind          Kind
	PartitionKey  string
	SchemaVersion int
	OccurredAt    time.Time
	Source        string
	Payload       Payload
}

// New builds an Event from a payload, assigning a fresh time-ordered event ID
// and stamping the producer identity. The partition key is derived from the
// payload so producers cannot mis-route an entity's history.
func New(source string, payload Payload) Event {
	eventID, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails on a broken clock; fall back to v4 rather than drop
		// the event.
		eventID = uuid.New()
	}

	return Event{
		EventID:       eventID.String(),
		Kind:          payload.Kind(),
		PartitionKey:  payload.PartitionKey(),
		SchemaVersion: CurrentVersion(payload.Kind()),
		OccurredAt:    time.Now().UTC(),
		Source:        source,
		Payload:       payload,
	}
}
