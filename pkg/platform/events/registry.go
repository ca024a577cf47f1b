package events

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// SchemaError reports a payload that does not match any known, supported
// schema version for its kind. It is never retried; the consumer framework
// routes it straight to dead-letter.
type SchemaError struct {
	Kind    Kind
	Version int
	Reason  string
	Err     error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema %s v%d: %s: %v", e.Kind, e.Version, e.Reason, e.Err)
	}
	return fmt.Sprintf("schema %s v%d: %s", e.Kind, e.Version, e.Reason)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// currentVersions pins the schema version each producer writes today.
// Bump a kind's entry together with registering its new codec.
var currentVersions = map[Kind]int{
	KindTransferCompleted: 1,
	KindKycStatusChanged:  1,
	KindSettingsChanged:   1,
}

// CurrentVersion returns the schema version producers assign to new events of
// the given kind.
func CurrentVersion(k Kind) int {
	return currentVersions[k]
}

// DecodeFunc turns raw payload bytes into a typed Payload.
type DecodeFunc func(data json.RawMessage) (Payload, error)

// JSONPayload builds a DecodeFunc for a concrete payload type. Unknown fields
// are ignored so additive schema changes never break older consumers.
func JSONPayload[T Payload]() DecodeFunc {
	return func(data json.RawMessage) (Payload, error) {
		var p T
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	}
}

type codec struct {
	version int
	decode  DecodeFunc
}

// Registry holds the versioned payload codecs for every event kind and
// performs envelope encoding and decoding. Decoding resolves the narrowest
// compatible version: the highest registered version that does not exceed the
// message's own, so consumers not yet upgraded keep working against newer
// producers.
type Registry struct {
	codecs map[Kind][]codec
}

// NewRegistry returns a registry preloaded with the current codec of every
// known kind.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[Kind][]codec)}
	r.Register(KindTransferCompleted, 1, JSONPayload[TransferCompleted]())
	r.Register(KindKycStatusChanged, 1, JSONPayload[KycStatusChanged]())
	r.Register(KindSettingsChanged, 1, JSONPayload[SettingsChanged]())
	return r
}

// Register adds a codec for a kind at the given version, replacing any codec
// already registered at that version.
func (r *Registry) Register(kind Kind, version int, decode DecodeFunc) {
	list := r.codecs[kind]
	for i := range list {
		if list[i].version == version {
			list[i].decode = decode
			return
		}
	}
	list = append(list, codec{version: version, decode: decode})
	sort.Slice(list, func(i, j int) bool { return list[i].version < list[j].version })
	r.codecs[kind] = list
}

// envelope is the wire form of an Event.
type envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	PartitionKey  string          `json:"partition_key"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Source        string          `json:"source"`
	Payload       json.RawMessage `json:"payload"`
}

// Encode serializes an Event for the broker. The event's schema version must
// be registered and its payload must validate; anything else is a
// *SchemaError, since publishing an unreadable event would poison the topic.
func (r *Registry) Encode(ev Event) ([]byte, error) {
	if ev.Payload == nil {
		return nil, &SchemaError{Kind: ev.Kind, Version: ev.SchemaVersion, Reason: "event has no payload"}
	}
	if ev.Payload.Kind() != ev.Kind {
		return nil, &SchemaError{
			Kind:    ev.Kind,
			Version: ev.SchemaVersion,
			Reason:  fmt.Sprintf("payload kind %s does not match event kind", ev.Payload.Kind()),
		}
	}
	if _, ok := r.exact(ev.Kind, ev.SchemaVersion); !ok {
		return nil, &SchemaError{Kind: ev.Kind, Version: ev.SchemaVersion, Reason: "unregistered schema version"}
	}
	if err := ev.Payload.Validate(); err != nil {
		return nil, &SchemaError{Kind: ev.Kind, Version: ev.SchemaVersion, Reason: "invalid payload", Err: err}
	}

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", ev.Kind, err)
	}

	data, err := json.Marshal(envelope{
		EventID:       ev.EventID,
		EventType:     string(ev.Kind),
		SchemaVersion: ev.SchemaVersion,
		PartitionKey:  ev.PartitionKey,
		OccurredAt:    ev.OccurredAt.UTC(),
		Source:        ev.Source,
		Payload:       payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", ev.Kind, err)
	}
	return data, nil
}

// Decode parses an envelope back into an Event. Schema mismatches of any sort
// come back as *SchemaError so callers can separate them from transient
// failures.
func (r *Registry) Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, &SchemaError{Reason: "malformed envelope", Err: err}
	}

	kind := Kind(env.EventType)
	list, ok := r.codecs[kind]
	if !ok || len(list) == 0 {
		return Event{}, &SchemaError{Kind: kind, Version: env.SchemaVersion, Reason: "unknown event kind"}
	}

	c, ok := r.resolve(list, env.SchemaVersion)
	if !ok {
		return Event{}, &SchemaError{
			Kind:    kind,
			Version: env.SchemaVersion,
			Reason:  fmt.Sprintf("no codec supports version %d (oldest supported is %d)", env.SchemaVersion, list[0].version),
		}
	}

	payload, err := c.decode(env.Payload)
	if err != nil {
		return Event{}, &SchemaError{Kind: kind, Version: env.SchemaVersion, Reason: "malformed payload", Err: err}
	}
	if err := payload.Validate(); err != nil {
		return Event{}, &SchemaError{Kind: kind, Version: env.SchemaVersion, Reason: "invalid payload", Err: err}
	}

	return Event{
		EventID:       env.EventID,
		Kind:          kind,
		PartitionKey:  env.PartitionKey,
		SchemaVersion: env.SchemaVersion,
		OccurredAt:    env.OccurredAt,
		Source:        env.Source,
		Payload:       payload,
	}, nil
}

// exact looks up the codec registered at precisely the given version.
func (r *Registry) exact(kind Kind, version int) (codec, bool) {
	for _, c := range r.codecs[kind] {
		if c.version == version {
			return c, true
		}
	}
	return codec{}, false
}

// resolve picks the narrowest compatible codec: the highest registered
// version that is <= the message's version. A message older than every
// registered codec is unsupported.
func (r *Registry) resolve(list []codec, version int) (codec, bool) {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].version <= version {
			return list[i], true
		}
	}
	return codec{}, false
}
