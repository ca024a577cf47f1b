// Package audit keeps the append-only trail of observed domain events.
// Entries are derived facts: one per domain event, written inside the
// consumer's unit of work on first observation and never updated or deleted.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Xarofive/bank-app-sub001/pkg/platform/events"
)

// Entry is one audit record. Timestamp is when the entry was recorded, which
// is distinct from the event's occurredAt.
type Entry struct {
	ID        uuid.UUID
	EventID   string
	EventType string
	Message   string
	UserID    string
	Timestamp time.Time
}

// Store persists audit entries. Append must be idempotent on EventID so that
// redelivery, and multiple consumers observing the same event, still leave
// exactly one entry per domain event. There is no delete: audit history is
// immutable and permanent.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	FindAll(ctx context.Context) ([]Entry, error)
	FindByUser(ctx context.Context, userID string) ([]Entry, error)
}

// EntryFor derives the audit entry for a domain event. The subject is the
// entity the event is partitioned by; the message is a short human-readable
// summary for operators.
func EntryFor(ev events.Event) Entry {
	entry := Entry{
		EventID:   ev.EventID,
		EventType: string(ev.Kind),
		UserID:    ev.PartitionKey,
	}

	switch p := ev.Payload.(type) {
	case events.TransferCompleted:
		entry.Message = fmt.Sprintf("transfer of %d %s from %s to %s completed",
			p.Amount, p.Currency, p.FromAccount, p.ToAccount)
	case events.KycStatusChanged:
		entry.Message = fmt.Sprintf("kyc status for %s changed to %s", p.UserID, p.Status)
	case events.SettingsChanged:
		entry.Message = fmt.Sprintf("settings for %s changed (notifications=%t, language=%s, darkMode=%t)",
			p.UserID, p.NotificationEnabled, p.Language, p.DarkModeEnabled)
	default:
		entry.Message = fmt.Sprintf("%s event observed from %s", ev.Kind, ev.Source)
	}
	return entry
}
