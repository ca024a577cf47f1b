// Package deadletter isolates messages the consumer framework gave up on:
// schema mismatches (never retried) and poison messages that exhausted their
// retry ceiling. Parked messages wait for manual remediation; they never
// block the partition they came from.
package deadletter

import (
	"context"
	"sync"
	"time"

	"github.com/Xarofive/bank-app-sub001/pkg/platform/broker"
)

// Reason classifies why a message was parked.
type Reason string

const (
	// ReasonSchema marks payloads no registered schema version accepts.
	ReasonSchema Reason = "schema"
	// ReasonPoison marks decoded events whose handler kept failing past the
	// retry ceiling.
	ReasonPoison Reason = "poison"
)

// Letter is a parked message together with why it was parked.
type Letter struct {
	Reason   Reason
	Detail   string
	Consumer string
	Attempts int
	FailedAt time.Time
	Message  *broker.Message
}

// Sink receives parked messages.
type Sink interface {
	Park(ctx context.Context, letter Letter) error
}

// Memory collects letters in memory for tests and local development.
type Memory struct {
	mu      sync.Mutex
	letters []Letter
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Park(_ context.Context, letter Letter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.letters = append(m.letters, letter)
	return nil
}

// Letters returns a copy of everything parked so far.
func (m *Memory) Letters() []Letter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Letter{}, m.letters...)
}
