package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Recorder assigns storage identity and timestamp to entries before they hit
// the store, and exposes the read side for operational tooling.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record persists the entry and returns the stored form. A failed append is a
// failure of the caller's whole unit of work, never a dropped side effect.
func (r *Recorder) Record(ctx context.Context, entry Entry) (Entry, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := r.store.Append(ctx, entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// FindAll returns every entry in storage order.
func (r *Recorder) FindAll(ctx context.Context) ([]Entry, error) {
	return r.store.FindAll(ctx)
}

// FindByUser returns the entries whose subject is the given user or account.
func (r *Recorder) FindByUser(ctx context.Context, userID string) ([]Entry, error) {
	return r.store.FindByUser(ctx, userID)
}
