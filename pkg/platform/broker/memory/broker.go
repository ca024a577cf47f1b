// Package memory provides an in-process Broker with the same delivery
// semantics as the Kafka implementation: partitioned topics, append order
// within a partition, and redelivery of uncommitted messages. It backs unit
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Xarofive/bank-app-sub001/pkg/platform/broker"
)

const defaultPartitions = 4

// Broker is an in-memory partitioned log.
type Broker struct {
	mu         sync.Mutex
	partitions int32
	topics     map[string][]*partitionLog
	groups     map[string]map[topicPartition]int64
	notify     chan struct{}
	closed     bool
}

type partitionLog struct {
	messages []*broker.Message
}

type topicPartition struct {
	topic     string
	partition int32
}

// Option configures a Broker.
type Option func(*Broker)

// WithPartitions sets the partition count for every topic.
func WithPartitions(n int32) Option {
	return func(b *Broker) {
		if n > 0 {
			b.partitions = n
		}
	}
}

// New creates an empty in-memory broker.
func New(opts ...Option) *Broker {
	b := &Broker{
		partitions: defaultPartitions,
		topics:     make(map[string][]*partitionLog),
		groups:     make(map[string]map[topicPartition]int64),
		notify:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish appends the message to the partition selected from its key.
func (b *Broker) Publish(_ context.Context, topic string, key, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("publish to %s: broker closed", topic)
	}

	logs := b.topic(topic)
	part := broker.PartitionFor(key, b.partitions)
	log := logs[part]
	log.messages = append(log.messages, &broker.Message{
		Topic:     topic,
		Partition: part,
		Offset:    int64(len(log.messages)),
		Key:       key,
		Value:     value,
		Timestamp: time.Now(),
	})

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

// Close marks the broker closed. Outstanding subscriptions keep draining
// already-published messages.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Subscribe attaches a consumer group to the given topics. Each group keeps
// its own committed read position per partition.
func (b *Broker) Subscribe(group string, topics ...string) (broker.Subscription, error) {
	if group == "" {
		return nil, fmt.Errorf("subscribe: group is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.groups[group]; !ok {
		b.groups[group] = make(map[topicPartition]int64)
	}
	for _, topic := range topics {
		b.topic(topic)
	}

	return &subscription{broker: b, group: group, topics: topics}, nil
}

// topic returns the partition logs for a topic, creating them on first use.
// Callers must hold b.mu.
func (b *Broker) topic(name string) []*partitionLog {
	logs, ok := b.topics[name]
	if !ok {
		logs = make([]*partitionLog, b.partitions)
		for i := range logs {
			logs[i] = &partitionLog{}
		}
		b.topics[name] = logs
	}
	return logs
}

type subscription struct {
	broker *Broker
	group  string
	topics []string
}

// Poll returns every message at or past the group's committed position, in
// append order per partition. Messages stay eligible for redelivery until
// committed.
func (s *subscription) Poll(ctx context.Context) ([]*broker.Message, error) {
	for {
		if msgs := s.pending(); len(msgs) > 0 {
			return msgs, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.broker.notify:
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (s *subscription) pending() []*broker.Message {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()

	var out []*broker.Message
	offsets := s.broker.groups[s.group]
	for _, topic := range s.topics {
		for part, log := range s.broker.topics[topic] {
			committed := offsets[topicPartition{topic, int32(part)}]
			for _, msg := range log.messages[committed:] {
				out = append(out, msg)
			}
		}
	}
	return out
}

// Commit advances the group's read position past msg. Commits are per
// partition and never move backwards.
func (s *subscription) Commit(_ context.Context, msg *broker.Message) error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()

	key := topicPartition{msg.Topic, msg.Partition}
	offsets := s.broker.groups[s.group]
	if next := msg.Offset + 1; next > offsets[key] {
		offsets[key] = next
	}
	return nil
}

func (s *subscription) Close() error { return nil }
