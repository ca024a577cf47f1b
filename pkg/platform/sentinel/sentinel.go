package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Brokers and stores return these
// (optionally wrapped) so the backbone can decide between retry, dead-letter,
// and surfacing to the caller.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: insert raced with an existing row
// - ErrUnavailable: broker or store temporarily unavailable; safe to retry
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
